package http

import (
	"maps"
	"slices"
)

type Handler func(ctx *RequestCtx) error

// Router collects routes before serving. Build freezes them into Routes,
// which is what the server reads from.
type Router struct {
	Routes      []Route
	Middleware  []Middleware
	StaticPaths []string
	Fallback    Handler
}

func NewRouter() *Router {
	return &Router{
		Routes: make([]Route, 0),
	}
}

func (router *Router) GET(path string, handler Handler, middleware ...Middleware) {
	router.Handle(string(MethodGet), path, handler, middleware...)
}

func (router *Router) POST(path string, handler Handler, middleware ...Middleware) {
	router.Handle(string(MethodPost), path, handler, middleware...)
}

func (router *Router) Handle(method, path string, handler Handler, middleware ...Middleware) {
	for _, middleware := range middleware {
		handler = middleware(handler)
	}

	router.Routes = append(router.Routes, Route{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// Group registers the routes added by groupFunc under a path prefix.
func (router *Router) Group(path string, groupFunc func(group *Router), middlewareList ...Middleware) {
	group := NewRouter()

	groupFunc(group)

	for _, route := range group.Routes {
		route.Path = path + route.Path
		for _, middleware := range middlewareList {
			route.Handler = middleware(route.Handler)
		}

		router.Routes = append(router.Routes, route)
	}
}

// Use adds middleware applied to every route, including the default handler.
func (router *Router) Use(middleware ...Middleware) {
	router.Middleware = append(router.Middleware, middleware...)
}

// Static adds paths served by the default handler when no route matches.
func (router *Router) Static(paths ...string) {
	router.StaticPaths = append(router.StaticPaths, paths...)
}

// Default sets the handler shared by all static paths.
func (router *Router) Default(handler Handler) {
	router.Fallback = handler
}

// Build returns a read-only snapshot of the registered routes. Later
// changes to the router do not affect it.
func (router *Router) Build() *Routes {
	routes := &Routes{
		handlers: make(map[string]Handler, len(router.Routes)),
		static:   make(map[string]struct{}, len(router.StaticPaths)),
	}

	for _, route := range router.Routes {
		routes.handlers[routeKey(route.Method, route.Path)] = router.wrap(route.Handler)
	}
	for _, path := range router.StaticPaths {
		routes.static[path] = struct{}{}
	}
	if router.Fallback != nil {
		routes.fallback = router.wrap(router.Fallback)
	}

	return routes
}

func (router *Router) wrap(handler Handler) Handler {
	for _, middleware := range router.Middleware {
		handler = middleware(handler)
	}
	return handler
}

// Routes is safe for concurrent use because it is never modified after Build.
type Routes struct {
	handlers map[string]Handler
	static   map[string]struct{}
	fallback Handler
}

// Resolve looks up the exact route first, then falls back to the default
// handler for allow-listed static paths regardless of method.
func (routes *Routes) Resolve(method, path string) (Handler, bool) {
	if handler, found := routes.handlers[routeKey(method, path)]; found {
		return handler, true
	}

	if _, found := routes.static[path]; found && routes.fallback != nil {
		return routes.fallback, true
	}

	return nil, false
}

// Keys lists the registered route keys in sorted order.
func (routes *Routes) Keys() []string {
	return slices.Sorted(maps.Keys(routes.handlers))
}
