// Command apns runs an APS push gateway client as an HTTP microservice.
//
// Usage
//
// List all available options:
//  apns --help
//
// Available options:
//   --address=0.0.0.0: IP address the HTTP server should bind to.
//   --port=9090: Port on which the HTTP server listens.
//   --cert="": Absolute path to a PEM certificate file.
//   --cert-key="": Absolute path to a PEM certificate private key file.
//   --cert-p12="": Absolute path to a PKCS#12 certificate bundle (alternative to --cert/--cert-key).
//   --cert-p12-password="": Password protecting the PKCS#12 bundle.
//   --env="sandbox": Apple environment, "production" or "sandbox".
//   --feedback-interval=10: Minutes between feedback service polls (minimum 1).
//   --legacy-eof-semantics=false: Treat all outstanding sends as successful on a clean gateway EOF.
//   --notification-endpoint="/notification": URI of the raw push notification endpoint.
//   --removed-devices-endpoint="/removed-devices": URI of the removed device tokens endpoint.
package main

import (
	"fmt"
	"net/http"
	"os"

	log "github.com/coreos/pkg/capnslog"
	"github.com/spf13/pflag"

	"github.com/shadimsaleh/push-glib/apns"
	"github.com/shadimsaleh/push-glib/server"
)

var apnsLogger, serverLogger *log.PackageLogger

func init() {
	log.SetFormatter(log.NewPrettyFormatter(os.Stdout, true))
	apnsLogger = log.NewPackageLogger("push-glib", "apns")
	serverLogger = log.NewPackageLogger("push-glib", "http")

	log.SetGlobalLogLevel(log.INFO)

	apns.SetLogger(apnsLogger)
	server.SetLogger(serverLogger)
}

func main() {
	apns.SetupCommandLineFlags(pflag.CommandLine)
	server.SetupCommandLineFlags(pflag.CommandLine)
	pflag.Parse()

	config := apns.NewConfig()
	client, err := apns.NewClient(config)
	if err != nil {
		apnsLogger.Fatalf("Failed to build client: %s", err)
	}

	if err := client.Connect(); err != nil {
		apnsLogger.Fatalf("Failed to connect to gateway: %s", err)
	}
	defer client.Close()

	registry := server.NewRemovedDeviceRegistry(client)

	http.HandleFunc(server.RawNotificationEndpoint, server.NewRawNotificationHTTPHandlerFunc(client))
	http.HandleFunc(server.RemovedDevicesEndpoint, server.NewRemovedDevicesHTTPHandlerFunc(registry))

	serverLogger.Infof("Starting server %s:%d", server.Address.String(), server.Port)

	addr := fmt.Sprintf("%s:%d", server.Address.String(), server.Port)
	if err := http.ListenAndServe(addr, nil); err != nil {
		serverLogger.Fatalf("Server failed to start: %s", err)
	}
}
