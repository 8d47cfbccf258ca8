package http

type Route struct {
	Method  string
	Path    string
	Handler Handler
}

func routeKey(method, path string) string {
	return method + "," + path
}
