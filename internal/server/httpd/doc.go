// Package httpd runs the webpanel HTTP and HTTPS listeners.
//
// Each Listener owns one net/http server and a small state machine
// around it. Transitions are observable through registered event
// callbacks and through WaitUntil, which the reconciler uses to
// confirm that a stop or start actually took effect before moving on.
//
// The HTTPS listener serves whatever identity is currently installed
// in its tlsmaterial.Identity; swapping the identity never requires a
// restart.
package httpd
