package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fieldroute/internal/model"
	"fieldroute/internal/opt"
	"fieldroute/internal/planner"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OptimizeWSHandler handles /v1/optimize/ws. The client sends one
// optimize request and receives a stream of improvement events
// followed by the final plan.
func (s *Server) OptimizeWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	write := func(typ string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return conn.WriteJSON(wsMessage{Type: typ, Payload: b})
	}
	writeError := func(msg string) { _ = write("error", map[string]string{"message": msg}) }

	var req model.OptimizeRequest
	if err := conn.ReadJSON(&req); err != nil {
		writeError("invalid request: " + err.Error())
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeError(err.Error())
		return
	}

	points := req.Points
	if len(points) == 0 && req.PointSetID != "" {
		ps, err := s.Store.GetPointSet(r.Context(), req.PointSetID)
		if err != nil {
			writeError("point set: " + err.Error())
			return
		}
		points = ps.Points
	}

	opts := s.plannerOptions(req.TimeBudgetMs)
	opts.OnImprovement = func(imp opt.Improvement) {
		_ = write("improvement", imp)
	}
	plan, met, err := planner.Plan(r.Context(), points, opts)
	if err != nil {
		if errors.Is(err, opt.ErrInvalidInput) {
			writeError(err.Error())
		} else {
			writeError("optimization failed")
		}
		return
	}
	plan.PointSetID = req.PointSetID
	plan, err = s.Store.SavePlan(r.Context(), plan)
	if err != nil {
		writeError("save failed")
		return
	}
	opt.RecordMetrics(plan.ID, met)
	_ = write("result", plan)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
