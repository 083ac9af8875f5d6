// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/geoimport/pkg/api/v1/handlers"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first (i.e. import routes before job routes)
2. For similar scopes, put the endpoints in alphabetical order
3. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
	b. After param considerations, order alphabetically.
4. For clarity, naming should match the action (i.e. GetJob, CancelJob)

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"

	// Event stream
	StreamEvents = "StreamEvents"

	// Collection routes
	CreateCollection = "CreateCollection"

	// Feature routes
	GetFeatures    = "GetFeatures"
	DeleteFeatures = "DeleteFeatures"

	// Import routes
	ListImports  = "ListImports"
	GetImport    = "GetImport"
	UploadImport = "UploadImport"
	CommitImport = "CommitImport"
	DeleteImport = "DeleteImport"

	// Job routes
	ListJobs  = "ListJobs"
	GetJob    = "GetJob"
	CancelJob = "CancelJob"
)

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering is important because routes will try and match in the order they are registered.
// For example, a static path such as /imports/commit has to be registered before any /imports/:id route of the same method.
func RegisterRoutes(
	app *fiber.App,
	importHandler *handlers.ImportHandler,
	jobHandler *handlers.JobHandler,
	featureHandler *handlers.FeatureHandler,
	eventHandler *handlers.EventHandler,
) {
	// API v1 routes
	v1 := app.Group(APIv1Prefix)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	// Event stream
	v1.Get("/events", eventHandler.Stream).Name(StreamEvents)

	// Collection endpoints
	collections := v1.Group("/collections")
	collections.Post("/", featureHandler.CreateCollection).Name(CreateCollection)

	// Feature endpoints
	features := v1.Group("/features")
	features.Get("/", featureHandler.GetFeatures).Name(GetFeatures)
	features.Delete("/", featureHandler.DeleteFeatures).Name(DeleteFeatures)

	// ---------------------------
	// Import endpoints
	imports := v1.Group("/imports")
	imports.Get("/", importHandler.ListItems).Name(ListImports)
	imports.Get("/:id", importHandler.GetItem).Name(GetImport)
	imports.Post("/", importHandler.Upload).Name(UploadImport)
	imports.Post("/commit", importHandler.Commit).Name(CommitImport)
	imports.Delete("/:id", importHandler.DeleteItem).Name(DeleteImport)

	// ---------------------------
	// Job endpoints
	jobs := v1.Group("/jobs")
	jobs.Get("/", jobHandler.ListJobs).Name(ListJobs)
	jobs.Get("/:id", jobHandler.GetJob).Name(GetJob)
	jobs.Post("/:id/cancel", jobHandler.CancelJob).Name(CancelJob)
}

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCache = make(map[string]string)

		// Create a mock app
		app := fiber.New()

		// Register routes with empty handlers, only the paths are needed
		RegisterRoutes(app, &handlers.ImportHandler{}, &handlers.JobHandler{}, &handlers.FeatureHandler{}, &handlers.EventHandler{})

		// Extract routes from the app
		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	initRouteCache()

	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()
	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	// Replace parameters in the route
	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, url.PathEscape(value))
	}

	// Remove trailing slash if it's a base endpoint with no parameters
	if strings.HasSuffix(route, "/") && !strings.Contains(route, ":") {
		route = strings.TrimSuffix(route, "/")
	}

	// Add query parameters if any
	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return BuildURL(HealthCheck, nil, nil)
}

// StreamEventsURL returns the URL of the event stream
func StreamEventsURL() string {
	return BuildURL(StreamEvents, nil, nil)
}

// CreateCollectionURL returns the URL for creating a collection
func CreateCollectionURL() string {
	return BuildURL(CreateCollection, nil, nil)
}

// Feature route helpers

// GetFeaturesURL returns the URL for querying features in a viewport
func GetFeaturesURL(queryParams url.Values) string {
	return BuildURL(GetFeatures, nil, queryParams)
}

// DeleteFeaturesURL returns the URL for deleting features
func DeleteFeaturesURL() string {
	return BuildURL(DeleteFeatures, nil, nil)
}

// Import route helpers

// ListImportsURL returns the URL for listing import items
func ListImportsURL(queryParams url.Values) string {
	return BuildURL(ListImports, nil, queryParams)
}

// GetImportURL returns the URL for getting an import item by ID
func GetImportURL(id string) string {
	return BuildURL(GetImport, map[string]string{"id": id}, nil)
}

// UploadImportURL returns the URL for uploading a file
func UploadImportURL() string {
	return BuildURL(UploadImport, nil, nil)
}

// CommitImportURL returns the URL for committing import items
func CommitImportURL() string {
	return BuildURL(CommitImport, nil, nil)
}

// DeleteImportURL returns the URL for deleting an import item
func DeleteImportURL(id string) string {
	return BuildURL(DeleteImport, map[string]string{"id": id}, nil)
}

// Job route helpers

// ListJobsURL returns the URL for listing jobs
func ListJobsURL(queryParams url.Values) string {
	return BuildURL(ListJobs, nil, queryParams)
}

// GetJobURL returns the URL for getting a job by ID
func GetJobURL(id string) string {
	return BuildURL(GetJob, map[string]string{"id": id}, nil)
}

// CancelJobURL returns the URL for cancelling a job
func CancelJobURL(id string) string {
	return BuildURL(CancelJob, map[string]string{"id": id}, nil)
}
