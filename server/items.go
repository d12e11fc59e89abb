package server

import (
	"net/http"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/storage"
	"github.com/gin-gonic/gin"
)

func (s *Server) listItems(c *gin.Context) {
	actor, _ := actorFrom(c)

	opts := storage.ListOptions{}
	if kind := c.Query("kind"); kind != "" {
		k, err := lifecycle.ParseKind(kind)
		if err != nil {
			badRequest(c, err)
			return
		}
		opts.Kind = k
	}
	if status := c.Query("status"); status != "" {
		st, err := lifecycle.ParseStatus(status)
		if err != nil {
			badRequest(c, err)
			return
		}
		opts.Statuses = []lifecycle.Status{st}
	}
	if !actor.Role.IsAdmin() {
		opts.AuthorID = actor.ID
	}

	items, err := s.service.List(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, newItemResponse(s.service.View(item)))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	in, err := req.toNewItem()
	if err != nil {
		badRequest(c, err)
		return
	}

	item, err := s.service.Create(c.Request.Context(), actor, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newItemResponse(s.service.View(*item)))
}

// getItem hides unpublished items from everyone but their author and admins
func (s *Server) getItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	item, err := s.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if item.Status != lifecycle.StatusApproved && !actor.Role.IsAdmin() && item.AuthorID != actor.ID {
		s.fail(c, &storage.Error{Type: storage.ErrNotFound, Message: "item not found: " + item.ID})
		return
	}
	c.JSON(http.StatusOK, newItemResponse(s.service.View(*item)))
}

func (s *Server) updateItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req patchItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		badRequest(c, err)
		return
	}

	item, err := s.service.Update(c.Request.Context(), actor, c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newItemResponse(s.service.View(*item)))
}

func (s *Server) moderateItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	status, err := lifecycle.ParseStatus(req.Status)
	if err != nil {
		badRequest(c, err)
		return
	}

	item, err := s.service.Moderate(c.Request.Context(), actor, c.Param("id"), status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newItemResponse(s.service.View(*item)))
}

func (s *Server) deleteItem(c *gin.Context) {
	actor, _ := actorFrom(c)

	if err := s.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
