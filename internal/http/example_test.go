package http_test

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/audienced/internal/catalog"
	httpserver "github.com/fyrsmithlabs/audienced/internal/http"
	"github.com/fyrsmithlabs/audienced/internal/logging"
	"github.com/fyrsmithlabs/audienced/internal/selectionsvc"
	"github.com/fyrsmithlabs/audienced/internal/store"
	"github.com/fyrsmithlabs/audienced/pkg/taxonomy"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	tree := taxonomy.NewTree(taxonomy.Identity{ID: "1", Name: "Founders"})

	svc, err := selectionsvc.New(selectionsvc.Options{
		Catalog: catalog.NewStatic(tree),
		Store:   store.NewMemory(),
	})
	if err != nil {
		panic(err)
	}

	logger := logging.Nop()
	server, err := httpserver.NewServer(svc, logger, &httpserver.Config{Host: "127.0.0.1", Port: 0})
	if err != nil {
		panic(err)
	}

	go func() {
		_ = server.Start()
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		fmt.Println("shutdown error:", err)
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
