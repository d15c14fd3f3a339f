// Package router mounts versioned API route groups on a gin engine.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteInfo describes one mounted route
type RouteInfo struct {
	Group  string
	Method string
	Path   string
}

// Router mounts route groups under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	groups     []*RouteGroup
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithMiddleware adds middleware that runs on every versioned API route
func WithMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, middleware...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BasePath returns the versioned API prefix
func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Mount queues groups for Setup
func (r *Router) Mount(groups ...*RouteGroup) *Router {
	r.groups = append(r.groups, groups...)
	return r
}

// Setup registers every mounted group with the engine and returns the
// resulting route table in registration order.
func (r *Router) Setup() []RouteInfo {
	api := r.engine.Group(r.BasePath())
	if len(r.middleware) > 0 {
		api.Use(r.middleware...)
	}

	var routes []RouteInfo
	for _, g := range r.groups {
		routes = g.mount(api, r.BasePath(), routes)
	}
	return routes
}

// RouteGroup collects the routes of one API area under a shared prefix
type RouteGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteGroup creates a group mounted at prefix. The prefix may carry
// route parameters such as /tenants/:tenantId.
func NewRouteGroup(name, prefix string) *RouteGroup {
	return &RouteGroup{name: name, prefix: prefix}
}

// Name returns the group name
func (g *RouteGroup) Name() string {
	return g.name
}

// Prefix returns the group prefix
func (g *RouteGroup) Prefix() string {
	return g.prefix
}

// Use adds middleware that runs only on this group's routes
func (g *RouteGroup) Use(middleware ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle registers a route for an arbitrary method
func (g *RouteGroup) Handle(method, relativePath string, handlers ...gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, route{method: method, path: relativePath, handlers: handlers})
	return g
}

// GET registers a GET route
func (g *RouteGroup) GET(relativePath string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodGet, relativePath, handlers...)
}

// POST registers a POST route
func (g *RouteGroup) POST(relativePath string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodPost, relativePath, handlers...)
}

// DELETE registers a DELETE route
func (g *RouteGroup) DELETE(relativePath string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodDelete, relativePath, handlers...)
}

func (g *RouteGroup) mount(parent *gin.RouterGroup, base string, routes []RouteInfo) []RouteInfo {
	group := parent.Group(g.prefix)
	if len(g.middleware) > 0 {
		group.Use(g.middleware...)
	}
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
		routes = append(routes, RouteInfo{
			Group:  g.name,
			Method: rt.method,
			Path:   joinPaths(base, g.prefix, rt.path),
		})
	}
	return routes
}

// joinPaths joins like gin does, keeping a trailing slash on the last element
func joinPaths(elems ...string) string {
	joined := path.Join(elems...)
	last := elems[len(elems)-1]
	if last != "" && last[len(last)-1] == '/' && joined[len(joined)-1] != '/' {
		return joined + "/"
	}
	return joined
}
