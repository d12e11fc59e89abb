package server

import (
	"net/http"

	"github.com/cyp0633/libagenda/recurrence"
	"github.com/gin-gonic/gin"
)

func (s *Server) buildRule(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sel, err := req.toSelection()
	if err != nil {
		badRequest(c, err)
		return
	}

	rule := sel.Build()
	resp := s.ruleResponse(rule)
	if end, ok := sel.EndTimeOfDay().Get(); ok {
		resp.EndTime = end.String()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) describeRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	rule, err := s.service.Machine().Engine().Decode(req.Rule)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ruleResponse(rule))
}

func (s *Server) expandRule(c *gin.Context) {
	var req expandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	from, err := recurrence.ParseLocal(req.From)
	if err != nil {
		badRequest(c, err)
		return
	}
	to, err := recurrence.ParseLocalUntil(req.To)
	if err != nil {
		badRequest(c, err)
		return
	}
	engine := s.service.Machine().Engine()
	rule, err := engine.Decode(req.Rule)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := expandResponse{Occurrences: []string{}}
	for _, t := range engine.Expand(rule, from, to) {
		resp.Occurrences = append(resp.Occurrences, t.Format(jsonTimeLayout))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ruleResponse(rule recurrence.Rule) ruleResponse {
	engine := s.service.Machine().Engine()
	resp := ruleResponse{
		Rule:    recurrence.Encode(rule),
		Summary: recurrence.Describe(rule),
		Single:  engine.IsSingle(rule),
	}
	if next, ok := engine.Next(rule, s.service.Now()); ok {
		resp.Next = next.Format(jsonTimeLayout)
	}
	return resp
}
