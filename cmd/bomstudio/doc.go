// Command bomstudio runs the studio daemon and inspects its data.
//
// "bomstudio serve" starts the pipeline and the HTTP API. The remaining
// commands read the entity store directly, except "videos retry" which asks
// the running daemon to restart a pipeline over its API.
package main
