// Command server runs the relay handler as a plain HTTP server for local
// development, translating requests into the event shape the Lambda sees.
package main

import (
	"encoding/base64"
	"io/ioutil"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/joho/godotenv"

	"github.com/deskdrop/deskdrop/internal/config"
	"github.com/deskdrop/deskdrop/internal/helpdesk"
	"github.com/deskdrop/deskdrop/internal/relay"
)

func main() {

	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load(".env")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	base := os.Getenv("HELPDESK_BASE_URL")
	var desk *helpdesk.Service
	if base != "" {
		desk, err = helpdesk.NewServiceAt(cfg, base)
	} else {
		desk, err = helpdesk.NewService(cfg)
	}
	if err != nil {
		log.Fatalf("could not create helpdesk service: %v", err)
	}

	h := relay.NewHandler(desk)

	http.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {

		body, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		req := events.APIGatewayProxyRequest{
			HTTPMethod:      r.Method,
			Headers:         map[string]string{"Content-Type": r.Header.Get("Content-Type")},
			Body:            base64.StdEncoding.EncodeToString(body),
			IsBase64Encoded: true,
		}

		res, err := h.Handle(&req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		for k, v := range res.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(res.StatusCode)
		w.Write([]byte(res.Body))
	})

	log.Println("listening on :8080")
	log.Fatal(http.ListenAndServe(":8080", nil))
}
