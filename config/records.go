package config

// Kind identifies one of the configuration documents
type Kind string

const (
	// KindContent is the page content document rendered into the index template
	KindContent Kind = "content"
	// KindApp is the application document: templates and static routes
	KindApp Kind = "app"
	// KindServer is the plain HTTP listener document
	KindServer Kind = "server"
	// KindTLS is the HTTPS listener document
	KindTLS Kind = "tls"
)

// Kinds lists every configuration document kind
var Kinds = []Kind{KindContent, KindApp, KindServer, KindTLS}

// Record is the closed set of configuration document types.
// Every field of a record is a required string.
type Record interface {
	Content | App | Server | TLS
	Kind() Kind
}

// Content holds the values rendered into the index page.
// If you change this, update json/content.json and the index template.
type Content struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Charset     string `json:"charset"`
	Lang        string `json:"lang"`
	CSS         string `json:"css"`
	CustomCSS   string `json:"custom_css"`
	JS          string `json:"js"`
}

// Kind implements Record
func (Content) Kind() Kind { return KindContent }

// Context returns the content as a template context keyed by json field name
func (c Content) Context() map[string]string {
	return map[string]string{
		"name":        c.Name,
		"url":         c.URL,
		"author":      c.Author,
		"description": c.Description,
		"charset":     c.Charset,
		"lang":        c.Lang,
		"css":         c.CSS,
		"custom_css":  c.CustomCSS,
		"js":          c.JS,
	}
}

// App holds the application settings.
// Templates is a glob relative to the server root, the other fields are
// URL routes that also name the root relative file served on that route.
type App struct {
	Templates  string `json:"templates"`
	CSS        string `json:"css"`
	CustomCSS  string `json:"custom_css"`
	JavaScript string `json:"javascript"`
}

// Kind implements Record
func (App) Kind() Kind { return KindApp }

// Server holds the plain HTTP listener settings
type Server struct {
	Socket   string `json:"socket"`
	Hostname string `json:"hostname"`
}

// Kind implements Record
func (Server) Kind() Kind { return KindServer }

// TLS holds the HTTPS listener settings.
// CertFile and KeyFile are relative to the server root.
type TLS struct {
	CertFile string `json:"certfile"`
	KeyFile  string `json:"keyfile"`
	Socket   string `json:"socket"`
}

// Kind implements Record
func (TLS) Kind() Kind { return KindTLS }
