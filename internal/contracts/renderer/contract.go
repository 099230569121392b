// Package renderer holds the JSON wire contract spoken by the remote render
// service. Field names follow the service's camelCase API.
package renderer

// StartRequest asks the service to render one composition.
type StartRequest struct {
	ServeURL     string         `json:"serveUrl"`
	Composition  string         `json:"composition"`
	InputProps   map[string]any `json:"inputProps"`
	Region       string         `json:"region"`
	FunctionName string         `json:"functionName"`
	BucketName   string         `json:"bucketName"`
	Codec        string         `json:"codec,omitempty"`
}

type StartResponse struct {
	RenderID   string `json:"renderId"`
	BucketName string `json:"bucketName"`
}

// ProgressResponse mirrors the service's progress document.
type ProgressResponse struct {
	Done                  bool            `json:"done"`
	OverallProgress       float64         `json:"overallProgress"`
	Errors                []ProgressError `json:"errors"`
	FatalErrorEncountered bool            `json:"fatalErrorEncountered"`
	Costs                 Costs           `json:"costs"`
	OutputFile            *string         `json:"outputFile"`
	ElapsedMilliseconds   int64           `json:"elapsedMilliseconds"`
}

type ProgressError struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Chunk   *int   `json:"chunk,omitempty"`
}

type Costs struct {
	AccruedSoFar float64 `json:"accruedSoFar"`
	DisplayCost  string  `json:"displayCost"`
	Currency     string  `json:"currency"`
}

// ErrorResponse is the body returned with non-2xx statuses.
type ErrorResponse struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}
