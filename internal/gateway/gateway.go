// Package gateway serves API Gateway proxy handlers over plain net/http, so the
// Lambda handler can run locally behind the same routes and CORS policy.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ContactPath is the route of the contact form endpoint
const ContactPath = "/api/contact"

// maxBody caps the request body read into the proxy event
const maxBody = 1 << 20

// ProxyHandler is satisfied by the contact handler
type ProxyHandler interface {
	Handle(ctx context.Context, request *events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// NewRouter mounts h on ContactPath with request ids, panic recovery and CORS
func NewRouter(h ProxyHandler, origins []string, log *zap.Logger) http.Handler {

	if log == nil {
		log = zap.NewNop()
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle(ContactPath, Adapt(h, log))

	return r
}

// Adapt turns an HTTP request into a proxy event and writes the proxy response back
func Adapt(h ProxyHandler, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("request body too large", zap.Int64("limit", tooLarge.Limit))
			writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		if err != nil {
			log.Warn("could not read request body", zap.Error(err))
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		res, err := h.Handle(r.Context(), toProxyRequest(r, body))
		if err != nil {
			log.Error("proxy handler failed", zap.Error(err))
			writeJSONError(w, http.StatusBadGateway, "Internal server error")
			return
		}

		out := []byte(res.Body)
		if res.IsBase64Encoded {
			if out, err = base64.StdEncoding.DecodeString(res.Body); err != nil {
				log.Error("could not decode response body", zap.Error(err))
				writeJSONError(w, http.StatusBadGateway, "Internal server error")
				return
			}
		}

		for k, v := range res.Headers {
			w.Header().Set(k, v)
		}
		for k, vs := range res.MultiValueHeaders {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(res.StatusCode)
		w.Write(out)
	}
}

func toProxyRequest(r *http.Request, body []byte) *events.APIGatewayProxyRequest {

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	q := r.URL.Query()
	query := make(map[string]string, len(q))
	for k := range q {
		query[k] = q.Get(k)
	}

	return &events.APIGatewayProxyRequest{
		Resource:                        r.URL.Path,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               r.Header,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: q,
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:    middleware.GetReqID(r.Context()),
			HTTPMethod:   r.Method,
			Path:         r.URL.Path,
			ResourcePath: r.URL.Path,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  r.RemoteAddr,
				UserAgent: r.UserAgent(),
			},
		},
		Body: string(body),
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request served",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
