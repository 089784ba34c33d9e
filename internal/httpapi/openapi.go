package httpapi

import (
	"net/http"
	"strconv"

	"github.com/bookstore/services/books/internal/books"
	"github.com/getkin/kin-openapi/openapi3"
)

const schemaPrefix = "#/components/schemas/"

// OpenAPI returns the OpenAPI 3 description of the routes served by s.
func (s *Server) OpenAPI() *openapi3.T {
	return s.openapi
}

func (s *Server) openAPI() *openapi3.T {
	schemas := openAPISchemas()
	ref := func(name string) *openapi3.SchemaRef {
		return openapi3.NewSchemaRef(schemaPrefix+name, schemas[name].Value)
	}

	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       apiTitle,
			Description: apiDescription,
			Version:     s.opts.Version,
		},
		Tags: openapi3.Tags{
			{Name: "root", Description: "Service liveness and health"},
			{Name: "books", Description: "Book records"},
		},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: schemas},
	}

	for _, rt := range s.routes() {
		op := openapi3.NewOperation()
		op.OperationID = rt.name
		op.Summary = rt.summary
		op.Tags = []string{rt.tag}

		if rt.withID {
			op.AddParameter(openapi3.NewPathParameter("id").
				WithDescription("Book id").
				WithSchema(openapi3.NewInt64Schema()))
		}
		if rt.withPage {
			op.AddParameter(openapi3.NewQueryParameter("skip").
				WithDescription("Number of books to skip").
				WithSchema(openapi3.NewIntegerSchema().WithMin(0).WithDefault(float64(books.DefaultOffset))))
			op.AddParameter(openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of books to return").
				WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithDefault(float64(books.DefaultLimit))))
		}
		if rt.withBody {
			op.RequestBody = &openapi3.RequestBodyRef{
				Value: openapi3.NewRequestBody().
					WithRequired(true).
					WithJSONSchemaRef(ref("BookCreate")),
			}
		}

		var ok *openapi3.SchemaRef
		switch rt.response {
		case responseMessage:
			ok = ref("Message")
		case responsePong:
			ok = openapi3.NewSchemaRef("", openapi3.NewStringSchema())
		case responseHealth:
			ok = ref("Health")
		case responseBook:
			ok = ref("Book")
		case responseBooks:
			ok = openapi3.NewSchemaRef("", &openapi3.Schema{
				Type:  &openapi3.Types{openapi3.TypeArray},
				Items: ref("Book"),
			})
		}

		responses := openapi3.NewResponses(
			openapi3.WithStatus(http.StatusOK, &openapi3.ResponseRef{
				Value: openapi3.NewResponse().
					WithDescription("Successful Response").
					WithJSONSchemaRef(ok),
			}),
		)
		if rt.notFound {
			responses.Set(strconv.Itoa(http.StatusNotFound), errorResponseRef("Book not found", ref("Error")))
		}
		if rt.withID || rt.withBody {
			responses.Set(strconv.Itoa(http.StatusBadRequest), errorResponseRef("Malformed request", ref("Error")))
		}
		if rt.withBody || rt.withPage {
			responses.Set(strconv.Itoa(http.StatusUnprocessableEntity), errorResponseRef("Validation Error", ref("Error")))
		}
		if rt.response == responseHealth {
			responses.Set(strconv.Itoa(http.StatusServiceUnavailable), &openapi3.ResponseRef{
				Value: openapi3.NewResponse().
					WithDescription("A dependency is unavailable").
					WithJSONSchemaRef(ref("Health")),
			})
		}
		op.Responses = responses

		path := openAPIPath(rt.path)
		item := doc.Paths.Value(path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(path, item)
		}
		item.SetOperation(rt.method, op)
	}

	return doc
}

func errorResponseRef(description string, schema *openapi3.SchemaRef) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription(description).
			WithJSONSchemaRef(schema),
	}
}

func openAPISchemas() openapi3.Schemas {
	title := openapi3.NewStringSchema().WithMinLength(1)
	author := openapi3.NewStringSchema().WithMinLength(1)
	date := openapi3.NewStringSchema().WithFormat("date")
	cover := openapi3.NewStringSchema()

	bookCreate := openapi3.NewObjectSchema().
		WithProperty("title", title).
		WithProperty("author", author).
		WithProperty("date_published", date).
		WithProperty("cover_image", cover)
	bookCreate.Required = []string{"title", "author", "date_published", "cover_image"}

	book := openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("title", title).
		WithProperty("author", author).
		WithProperty("date_published", date).
		WithProperty("cover_image", cover)
	book.Required = []string{"id", "title", "author", "date_published", "cover_image"}

	message := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema())
	message.Required = []string{"message"}

	health := openapi3.NewObjectSchema().
		WithProperty("status", openapi3.NewStringSchema().WithEnum("ok", "unavailable")).
		WithProperty("checks", openapi3.NewObjectSchema().
			WithAdditionalProperties(openapi3.NewStringSchema()))
	health.Required = []string{"status"}

	errSchema := openapi3.NewObjectSchema().
		WithProperty("detail", &openapi3.Schema{})
	errSchema.Required = []string{"detail"}

	return openapi3.Schemas{
		"Book":       openapi3.NewSchemaRef("", book),
		"BookCreate": openapi3.NewSchemaRef("", bookCreate),
		"Message":    openapi3.NewSchemaRef("", message),
		"Health":     openapi3.NewSchemaRef("", health),
		"Error":      openapi3.NewSchemaRef("", errSchema),
	}
}
