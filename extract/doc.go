// Package extract turns declared handler parameters into values taken from
// an HTTP request.
//
// # Extractors
//
// An Extractor describes where one value comes from and how it is parsed:
//
//	extract.Param(extract.Int)                     // path or query, required
//	extract.Query(25)                              // query, optional, int inferred from the default
//	extract.Header(extract.String, nil, extract.Name("X-Request-ID"))
//	extract.Cookie(extract.UUID)
//	extract.JSON(reflect.TypeFor[Note]())          // validated model body
//	extract.Text()                                 // body as string
//	extract.FileUpload()                           // body as []byte
//	extract.FileUploadReader()                     // body as io.Reader
//	extract.MultipleFileUpload(reflect.TypeFor[Form]())
//	extract.MultiPartReader(extract.PartOf("file", extract.FileUploadReader()))
//	extract.MultiPart(extract.PartOf("meta", extract.JSON(reflect.TypeFor[Meta]())))
//
// Constructors follow one calling convention: an optional parser (a Parser
// or a reflect.Type), an optional default, and any number of Options. A
// single non-parser argument is the default, and the parser is inferred
// from its type. Declaration mistakes are reported by Err and surface as a
// *SignatureError when the handler is resolved.
//
// # Resolution
//
// Handler parameters are declared with a Signature. Inspect lists them
// and Resolve decides, per parameter, in this order:
//
//  1. A parameter annotated with RequestType is passed through.
//  2. A default that is an Extractor is used as is.
//  3. A model annotation reads a JSON body.
//  4. Any other annotation is a Param parsed by it.
//  5. A parameter with neither annotation nor default is passed through.
//     At most two such parameters are accepted.
//  6. A parameter with only a default is a JSON body when the default is a
//     model, and a Param otherwise.
//
// When the route variables are known, Param bindings become Path bindings
// if their wire name is a route variable, and Query bindings otherwise.
//
// # Extraction
//
// Run extracts all bindings concurrently. Field errors of every binding are
// collected into ExtractionErrors, which is what clients receive:
//
//	[{"in": "query", "loc": ["offset"], "msg": "Parameter \"offset\" is required in query", "type": "MissingValueError"}]
//
// A request violating the multipart protocol aborts extraction with a
// *ProtocolError instead.
package extract
