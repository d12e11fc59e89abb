package server

import (
	"net/http"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage"
	"github.com/gin-gonic/gin"
)

// windowQuery reads ?view=&date=; view defaults to month and date to today
func (s *Server) windowQuery(c *gin.Context) (agenda.View, agenda.Window, bool) {
	view := agenda.ViewMonth
	if v := c.Query("view"); v != "" {
		parsed, err := agenda.ParseView(v)
		if err != nil {
			badRequest(c, err)
			return "", agenda.Window{}, false
		}
		view = parsed
	}

	date := s.service.Now()
	if d := c.Query("date"); d != "" {
		parsed, err := recurrence.ParseLocal(d)
		if err != nil {
			badRequest(c, err)
			return "", agenda.Window{}, false
		}
		date = parsed
	}
	return view, agenda.WindowFor(view, date), true
}

func kindQuery(c *gin.Context) (lifecycle.Kind, bool) {
	kind := c.Query("kind")
	if kind == "" {
		return "", true
	}
	k, err := lifecycle.ParseKind(kind)
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return k, true
}

func (s *Server) getAgenda(c *gin.Context) {
	view, win, ok := s.windowQuery(c)
	if !ok {
		return
	}
	kind, ok := kindQuery(c)
	if !ok {
		return
	}

	occ, err := s.service.Occurrences(c.Request.Context(), win, kind)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newAgendaResponse(view, win, occ))
}

func (s *Server) getICalFeed(c *gin.Context) {
	kind, ok := kindQuery(c)
	if !ok {
		return
	}

	items, err := s.service.List(c.Request.Context(), storage.ListOptions{
		Kind:     kind,
		Statuses: []lifecycle.Status{lifecycle.StatusApproved},
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.feed.WriteICal(c.Writer, items); err != nil {
		s.logger.Error().Err(err).Msg("failed to write ical feed")
	}
}

func (s *Server) getXMLFeed(c *gin.Context) {
	_, win, ok := s.windowQuery(c)
	if !ok {
		return
	}
	kind, ok := kindQuery(c)
	if !ok {
		return
	}

	occ, err := s.service.Occurrences(c.Request.Context(), win, kind)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.feed.WriteXML(c.Writer, win, occ); err != nil {
		s.logger.Error().Err(err).Msg("failed to write xml feed")
	}
}
