package view

import "github.com/vitalvas/reqbind/extract"

// Meta is handler metadata used for documentation.
type Meta struct {
	// Status overrides the documented success status. Zero means 200 when
	// the handler declares a return type and 204 otherwise.
	Status              int
	ResponseDescription string
	// ContentType of the documented response (default: application/json).
	ContentType string
	Tags        []string
	Deprecated  bool
}

// MetaOption configures handler metadata.
type MetaOption func(*metaBuilder)

type metaBuilder struct {
	meta    Meta
	tag     string
	tags    []string
	tagsSet bool
}

// Status sets the documented success status.
func Status(code int) MetaOption {
	return func(b *metaBuilder) { b.meta.Status = code }
}

// ResponseDescription sets the description of the success response.
func ResponseDescription(d string) MetaOption {
	return func(b *metaBuilder) { b.meta.ResponseDescription = d }
}

// ContentType sets the media type of the response.
func ContentType(ct string) MetaOption {
	return func(b *metaBuilder) { b.meta.ContentType = ct }
}

// Tag sets a single tag. It cannot be combined with Tags.
func Tag(tag string) MetaOption {
	return func(b *metaBuilder) { b.tag = tag }
}

// Tags sets the tags. It cannot be combined with Tag.
func Tags(tags ...string) MetaOption {
	return func(b *metaBuilder) {
		b.tags = tags
		b.tagsSet = true
	}
}

// Deprecated marks the handler deprecated.
func Deprecated() MetaOption {
	return func(b *metaBuilder) { b.meta.Deprecated = true }
}

func newMeta(opts []MetaOption) (Meta, error) {
	b := &metaBuilder{meta: Meta{ContentType: extract.ContentTypeJSON}}
	for _, opt := range opts {
		opt(b)
	}
	switch {
	case b.tagsSet && len(b.tags) > 0 && b.tag != "":
		return Meta{}, &extract.SignatureError{Msg: "cannot use both Tag and Tags"}
	case len(b.tags) > 0:
		b.meta.Tags = append([]string(nil), b.tags...)
	case b.tag != "":
		b.meta.Tags = []string{b.tag}
	}
	return b.meta, nil
}
