// Package captcha provides clients for external challenge-verification
// providers and a per-request provider selection policy.
//
// Two providers are supported side by side: Cloudflare Turnstile (primary)
// and hCaptcha (secondary). Both speak the same siteverify wire contract:
// a form POST of {secret, response, remoteip} answered with JSON
// {success, error-codes, challenge_ts, hostname}.
//
// # Failure policy
//
// A transport error, timeout, non-200 status, or explicit provider rejection
// all resolve to Result.Success == false. The caller never sees an error for
// provider failures; diagnostic codes are logged here when present.
//
// A client constructed with Disabled set reports success unconditionally.
// A client with no secret is forced into the disabled state and the
// misconfiguration is logged once at construction, so traffic never passes
// silently.
package captcha
