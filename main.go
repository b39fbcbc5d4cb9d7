package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"go-social/devserver"
	"go-social/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default configuration")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "social.db"
	}
	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	db, err := devserver.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	server := devserver.NewServer(db, jwtSecret, uploadDir)

	// CORS for the browser client
	allowedOrigins := []string{"http://localhost:3000", "http://localhost:5173"}
	handler := middleware.CORSMiddleware(allowedOrigins)(server)

	log.Printf("Server starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
