// Package health actively probes named external services on an interval,
// derives a rolling status per service, and dispatches alerts on sustained
// degradation.
//
// Probing is independent of live traffic: a service that receives no calls is
// still checked, so operators learn about an outage before the next user
// request hits it. Alert delivery transport (chat, email, webhooks) is the
// caller's concern; this package only invokes registered handlers.
package health
