// Package apns implements a client for Apple's legacy binary Push
// Notification and Feedback services. It owns a persistent TLS connection
// to the APS gateway, multiplexes concurrent deliveries over it, and
// correlates asynchronous error responses back to the delivery that
// caused them. A companion feedback session polls Apple's feedback
// endpoint on a timer and reports invalidated device tokens.
package apns
