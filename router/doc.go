// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the Quickly Elect API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(svc, cfg)

main wraps it with middleware.Recover and middleware.CORS.

# Endpoints

Health:

	GET /health

Election management (writes require X-Admin-Key):

	POST   /elections
	GET    /elections?status=draft,active&include_archived=true
	GET    /elections/{id}
	PATCH  /elections/{id}
	DELETE /elections/{id}

Operator actions (X-Admin-Key):

	POST /elections/{id}/publish
	POST /elections/{id}/start
	POST /elections/{id}/end
	POST /elections/{id}/cancel
	POST /elections/{id}/postpone
	POST /elections/{id}/archive
	POST /elections/{id}/restore
	POST /elections/{id}/declare
	POST /elections/{id}/reconcile

Voting (X-Voter-ID):

	POST /voters/{voterId}/challenge
	POST /elections/{id}/credential
	POST /elections/{id}/credential/verify
	POST /elections/{id}/votes
	GET  /elections/{id}/votes/me/status
	POST /elections/{id}/votes/me/view

Results (public once declared):

	GET /elections/{id}/results
*/
package router
