// Function relay receives a form submission and hands over to package relay.
package main

import (
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"

	"github.com/deskdrop/deskdrop/internal/config"
	"github.com/deskdrop/deskdrop/internal/helpdesk"
	"github.com/deskdrop/deskdrop/internal/relay"
)

var handler *relay.Handler

func init() {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	sm := secretsmanager.New(sess, &aws.Config{Region: aws.String(os.Getenv("AWS_REGION"))})

	cfg, err := config.Load(sm)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	desk, err := helpdesk.NewService(cfg)
	if err != nil {
		log.Fatalf("could not create helpdesk service: %v", err)
	}
	handler = relay.NewHandler(desk)
}

func handle(req *events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return handler.Handle(req)
}

func main() {
	lambda.Start(handle)
}
