/*
Package server exposes the agenda service over HTTP with gin.

# Basic Usage

	store := memory.New()
	engine := recurrence.NewEngine()
	svc := agenda.NewService(store, lifecycle.NewMachine(engine))
	srv := server.New(svc, agenda.NewFeedWriter(engine, "Agenda", logger))
	http.ListenAndServe(":8080", srv.Handler())

# Identity

Authentication happens upstream. The proxy in front of the server vouches
for the caller with three headers:

	X-Actor-ID    stable user id
	X-Actor-Name  display name stored as the item author
	X-Actor-Role  admin, leader or editor

Requests without X-Actor-ID are anonymous. Anonymous callers can read the
public agenda and feeds; every item route requires an actor.

# Routes

All routes live under /api/v1:

	GET    /items                 list items (admins: all, others: their own)
	POST   /items                 create an item
	GET    /items/:id             item with effective state and summary
	PATCH  /items/:id             edit an item
	PUT    /items/:id/status      moderate (admins only)
	DELETE /items/:id             delete an item
	GET    /agenda                approved occurrences for a calendar view
	GET    /agenda.ics            iCalendar feed of approved items
	GET    /agenda.xml            XML feed of a calendar view
	POST   /rules/build           compose a rule from form choices
	POST   /rules/describe        summarize a rule
	POST   /rules/expand          preview the occurrences of a rule
*/
package server
