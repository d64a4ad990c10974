// Package relay provides the message relay that masters publish to and
// followers subscribe through.
//
// A channel is named by its channel id, the hash of a secret only masters
// know. The relay forwards a published envelope only if its secret hashes to
// its channel id. It strips the secret before fan-out and never delivers a
// message back to the subscription it came from.
//
// # Endpoints
//
//   - GET /subscribe?channel=<id> - Server-Sent Events; a hello frame with the
//     connection id, then one state-changed frame per relayed envelope
//   - POST /publish?event=state-changed - publish an envelope; the optional
//     Slidesync-Connection header names the publisher's own subscription
//   - GET /healthz - liveness
//
// # Abuse
//
// Clients that keep presenting bad secrets are blocked per IP with
// exponential backoff.
package relay
