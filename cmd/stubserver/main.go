package main

import (
	"log"
	"os"

	"github.com/example/shopcore/internal/stubserver"
)

func main() {
	port := os.Getenv("STUB_PORT")
	if port == "" {
		port = "8080"
	}

	srv := stubserver.New(stubserver.Options{})

	srv.SeedProduct(stubserver.Product{
		ID:    "demo-tee",
		Name:  "Demo T-Shirt",
		Image: "/images/demo-tee.png",
		Price: 500,
	})

	log.Printf("Starting stub server on :%s", port)
	if err := srv.App().Listen(":" + port); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
