// Package fetchx provides the HTTP pipeline used by the fetchx data-access layer.
//
// # Overview
//
// A Service owns the base configuration of an API (base URL, default headers,
// credentials mode) and runs every request through an ordered chain of interceptors
// that ends in the network call. Resource accessors (package repository) and the
// observable state containers (package store) are built on top of it.
//
//	svc, err := fetchx.NewService(&fetchx.Config{BaseURL: "https://api.example.com"})
//	if err != nil { log.Fatal(err) }
//
//	svc.SetHeader("Authorization", "Bearer "+token)
//
//	resp, err := svc.Fetch(ctx, "/users", &fetchx.RequestConfig{
//	  Params: fetchx.NewParams("limit", "10", "skip", "0"),
//	})
//
// # Interceptors
//
// Interceptors are registered by id and invoked in registration order. Each one
// receives the effective request and a next handler; code before next runs on the way
// out, code after next runs on the way back, in nested order:
//
//	svc.SetInterceptor("auth", fetchx.AuthenticationInterceptor(tokens))
//	svc.SetInterceptor("log", fetchx.LoggingInterceptor(logger))
//
// An interceptor that returns without calling next short-circuits the chain.
// Re-registering an existing id replaces the function and keeps its position.
//
// # Bodies
//
// Maps and structs are serialized to JSON and sent with Content-Type
// application/json. Strings, byte slices, json.RawMessage and io.Reader bodies are
// sent unchanged.
//
// # Errors
//
// A response outside the 2xx range fails with *RequestFailedError, which carries the
// effective request and the response. errors.Is(err, ErrRequestFailed) matches it and
// IsNotFound, IsUnauthorized and StatusCode help branching on it. The pipeline never
// retries; the default transport only retries connection errors when configured to.
package fetchx
