package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muurk/multicontroller/internal/entity"
	"github.com/muurk/multicontroller/internal/params"
	"github.com/muurk/multicontroller/internal/rainmaker"
)

// ParamView is the JSON form of one normalized parameter
type ParamView struct {
	Name       string         `json:"name"`
	Value      any            `json:"value"`
	DataType   string         `json:"data_type"`
	Properties []string       `json:"properties"`
	Bounds     *params.Bounds `json:"bounds,omitempty"`
}

// NodeView is the JSON form of one node
type NodeView struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Params []ParamView `json:"params"`
}

// NewNodeView builds the JSON form of node id
func NewNodeView(id string, m params.ParameterMap) NodeView {
	view := NodeView{ID: id, Name: entity.NodeName(m, id), Params: make([]ParamView, 0, len(m))}
	for _, name := range m.Names() {
		p := m.Get(name)
		view.Params = append(view.Params, ParamView{
			Name:       p.Name,
			Value:      p.Value,
			DataType:   p.DataType.String(),
			Properties: p.Properties.List(),
			Bounds:     p.Bounds,
		})
	}
	return view
}

// errorStatus maps entity errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrUnknownFanMode),
		errors.Is(err, entity.ErrUnsupportedHVACMode),
		errors.Is(err, entity.ErrOutOfBounds):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}

// GET /health
func (s *Server) healthCheck(c *gin.Context) {
	body := gin.H{
		"status":              "ok",
		"timestamp":           time.Now().Unix(),
		"last_update_success": s.coord.LastUpdateSuccess(),
	}
	if t := s.coord.LastUpdate(); !t.IsZero() {
		body["last_update"] = t
	}
	c.JSON(http.StatusOK, body)
}

// GET /api/v1/status
func (s *Server) getStatus(c *gin.Context) {
	skipped := s.coord.Skipped()
	reasons := make([]string, 0, len(skipped))
	for _, err := range skipped {
		reasons = append(reasons, err.Error())
	}

	body := gin.H{
		"nodes":               s.coord.Snapshot().Len(),
		"entities":            s.entities.Len(),
		"last_update_success": s.coord.LastUpdateSuccess(),
		"last_update":         s.coord.LastUpdate(),
		"polling":             s.coord.IsRunning(),
		"interval":            s.coord.Interval().String(),
		"skipped":             reasons,
		"ws_clients":          s.hub.ClientCount(),
	}
	if err := s.coord.LastError(); err != nil {
		body["last_error"] = err.Error()
		body["last_error_reason"] = rainmaker.GetShortErrorMessage(err)
	}
	c.JSON(http.StatusOK, body)
}

// POST /api/v1/refresh
func (s *Server) refresh(c *gin.Context) {
	if err := s.coord.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"reason": rainmaker.GetShortErrorMessage(err),
			"nodes":  s.coord.Snapshot().Len(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"nodes":       s.coord.Snapshot().Len(),
		"last_update": s.coord.LastUpdate(),
	})
}

// GET /api/v1/nodes
func (s *Server) listNodes(c *gin.Context) {
	snap := s.coord.Snapshot()
	nodes := make([]NodeView, 0, snap.Len())
	for _, id := range snap.NodeIDs() {
		nodes = append(nodes, NewNodeView(id, snap.Node(id)))
	}
	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}

// GET /api/v1/nodes/:id
func (s *Server) getNode(c *gin.Context) {
	id := c.Param("id")
	m := s.coord.Snapshot().Node(id)
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	c.JSON(http.StatusOK, NewNodeView(id, m))
}

// GET /api/v1/entities
func (s *Server) listEntities(c *gin.Context) {
	states := s.entities.Describe()
	if p := c.Query("platform"); p != "" {
		filtered := states[:0]
		for _, st := range states {
			if string(st.Platform) == p {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}
	c.JSON(http.StatusOK, gin.H{
		"entities": states,
		"count":    len(states),
	})
}

// GET /api/v1/entities/:id
func (s *Server) getEntity(c *gin.Context) {
	e, err := s.entities.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, e.State())
}

// POST /api/v1/climate/:id/hvac_mode
func (s *Server) setHVACMode(c *gin.Context) {
	var req struct {
		HVACMode string `json:"hvac_mode" binding:"required"`
	}
	climate, ok := s.bindClimate(c, &req)
	if !ok {
		return
	}
	if err := climate.SetHVACMode(c.Request.Context(), entity.HVACMode(req.HVACMode)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, climate.State())
}

// POST /api/v1/climate/:id/temperature
func (s *Server) setTemperature(c *gin.Context) {
	var req struct {
		Temperature *float64 `json:"temperature" binding:"required"`
	}
	climate, ok := s.bindClimate(c, &req)
	if !ok {
		return
	}
	if err := climate.SetTemperature(c.Request.Context(), *req.Temperature); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, climate.State())
}

// POST /api/v1/climate/:id/fan_mode
func (s *Server) setFanMode(c *gin.Context) {
	var req struct {
		FanMode string `json:"fan_mode" binding:"required"`
	}
	climate, ok := s.bindClimate(c, &req)
	if !ok {
		return
	}
	if err := climate.SetFanMode(c.Request.Context(), req.FanMode); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, climate.State())
}

func (s *Server) bindClimate(c *gin.Context, req any) (*entity.Climate, bool) {
	climate, err := s.entities.Climate(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return climate, true
}

// POST /api/v1/switch/:id/on
func (s *Server) turnOn(c *gin.Context) {
	sw, err := s.entities.Switch(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	sw.TurnOn(c.Request.Context())
	c.JSON(http.StatusOK, sw.State())
}

// POST /api/v1/switch/:id/off
func (s *Server) turnOff(c *gin.Context) {
	sw, err := s.entities.Switch(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	sw.TurnOff(c.Request.Context())
	c.JSON(http.StatusOK, sw.State())
}

// POST /api/v1/number/:id/value
func (s *Server) setNumber(c *gin.Context) {
	n, err := s.entities.Number(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	var req struct {
		Value *float64 `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := n.SetNativeValue(c.Request.Context(), *req.Value); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, n.State())
}

// GET /api/v1/ws
func (s *Server) serveWs(c *gin.Context) {
	ServeWs(s.hub, c.Writer, c.Request)
}
