package extract

// Location is the wire-level origin of a handler argument. Body locations
// carry the body flavour in parentheses, matching the "in" member of
// error responses.
type Location string

const (
	LocationPath      Location = "path"
	LocationQuery     Location = "query"
	LocationHeader    Location = "header"
	LocationCookie    Location = "cookie"
	LocationJSON      Location = "body (json)"
	LocationMultipart Location = "body (multipart)"
	LocationText      Location = "body (text)"
	LocationBinary    Location = "body (binary)"
)

// String returns the location as it appears in error responses.
func (l Location) String() string {
	return string(l)
}

// IsBody reports whether the location refers to the request body.
func (l Location) IsBody() bool {
	switch l {
	case LocationJSON, LocationMultipart, LocationText, LocationBinary:
		return true
	}
	return false
}

// Kind identifies an extractor variant.
type Kind int

const (
	// KindParam is a path-or-query parameter not yet bound to a route.
	KindParam Kind = iota
	KindPath
	KindQuery
	KindHeader
	KindCookie
	KindJSON
	KindText
	KindFileUpload
	KindFileUploadReader
	KindMultipleFileUpload
	KindMultiPartReader
	KindMultiPart
)

var kindNames = [...]string{
	KindParam:              "Param",
	KindPath:               "Path",
	KindQuery:              "Query",
	KindHeader:             "Header",
	KindCookie:             "Cookie",
	KindJSON:               "JSON",
	KindText:               "Text",
	KindFileUpload:         "FileUpload",
	KindFileUploadReader:   "FileUploadReader",
	KindMultipleFileUpload: "MultipleFileUpload",
	KindMultiPartReader:    "MultiPartReader",
	KindMultiPart:          "MultiPart",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsBody reports whether extractors of this kind consume the request body.
// At most one body extractor is allowed per handler.
func (k Kind) IsBody() bool {
	return k >= KindJSON
}

// IsMultipart reports whether the kind reads a multipart body part by part
// through named sub-extractors.
func (k Kind) IsMultipart() bool {
	return k == KindMultiPartReader || k == KindMultiPart
}

// location returns the default location of a kind. KindParam reports query
// because that is where an unbound parameter is read from when no path
// variable matches.
func (k Kind) location() Location {
	switch k {
	case KindPath:
		return LocationPath
	case KindParam, KindQuery:
		return LocationQuery
	case KindHeader:
		return LocationHeader
	case KindCookie:
		return LocationCookie
	case KindJSON:
		return LocationJSON
	case KindText:
		return LocationText
	case KindFileUpload, KindFileUploadReader:
		return LocationBinary
	}
	return LocationMultipart
}

// Media types used for request bodies.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeText      = "text/plain"
	ContentTypeBinary    = "application/octet-stream"
	ContentTypeFormData  = "multipart/form-data"
	ContentTypeMultipart = "multipart/mixed"
)

func (k Kind) contentType() string {
	switch k {
	case KindJSON:
		return ContentTypeJSON
	case KindText:
		return ContentTypeText
	case KindFileUpload, KindFileUploadReader:
		return ContentTypeBinary
	case KindMultipleFileUpload:
		return ContentTypeFormData
	case KindMultiPartReader, KindMultiPart:
		return ContentTypeMultipart
	}
	return ""
}
