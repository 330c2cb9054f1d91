// Package fetchxclient provides the main entry point for building a fetchx client.
//
// It wires the HTTP pipeline, authentication, logging and the response cache into a
// Client, and hands out resource accessors and state containers bound to it.
//
// # Quick start
//
//	ctx := context.Background()
//
//	// Minimal: just a base URL.
//	cli, err := fetchxclient.New(ctx, &fetchxclient.Options{BaseURL: "https://api.example.com"})
//	if err != nil { log.Fatal(err) }
//	defer cli.Close()
//
//	// Or read FETCHX_* environment variables.
//	cli, err = fetchxclient.NewFromEnv(ctx)
//
//	users, err := fetchxclient.NewList[User](cli, "/users", store.ListOptions{
//	  Limit:        10,
//	  LimitField:   "limit",
//	  SkipField:    "skip",
//	  ResultsField: "users",
//	  CacheID:      "users",
//	})
//	if err := users.Fetch(ctx); err != nil { log.Fatal(err) }
//
// # Authentication
//
// A static Token is sent as a bearer token. With TokenURL and client credentials or a
// username and password, tokens are obtained through OAuth2 and refreshed on expiry.
package fetchxclient
