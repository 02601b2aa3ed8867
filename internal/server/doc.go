// Package server provides HTTP routing, middleware, the JSON queue API and the websocket event stream.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the stock middleware used by the serve command.
//
// The [BasicRouter] implementation registers method patterns ("GET /api/downloads/{id}") on [http.ServeMux],
// so one path can serve several methods and wildcards are read with [http.Request.PathValue].
//
// # API
//
// [API] exposes the downloader and its history:
//
//	POST   /api/downloads       enqueue {resourceId, fileName} → 202 {taskId}
//	GET    /api/downloads       history (?status=, ?resource=, ?limit=)
//	GET    /api/downloads/{id}  one history row by download or task id
//	DELETE /api/downloads/{id}  cancel a task that is still waiting
//	GET    /api/queue           running and waiting counts
//	GET    /healthz             liveness
//
// # Event Stream
//
// [Hub] implements the [Handler] interface for GET /api/events. Each websocket client receives the
// reporter's events as JSON; ?task= narrows the stream to one task. Progress and queue size events
// are dropped for slow clients, while a client that cannot accept a terminal event is disconnected.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
