// Package alerts checks stored readings against the current thresholds.
// A reading that breaches any bound produces one alert whose message joins
// every reason ("pH low (6.1 < 6.5); TDS high (612 > 500)"). Alerts are kept
// in a bounded history and delivered to Slack, Teams, or generic HTTP webhooks.
package alerts
