// Package services contains HTTP clients for the vidmark backend's REST API.
//
// The only client the realtime core depends on is [JobsService], which serves
// gap recovery by replaying a job's progress history since a given timestamp.
// Requests authenticate with a bearer credential and pass through a shared
// rate limiter so a reconnect's recovery fan-out cannot hammer the backend.
package services
