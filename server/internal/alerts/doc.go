// Package alerts evaluates threshold rules against recorded sessions and
// delivers firing and resolved notifications to Slack, Teams or generic HTTP
// webhooks. Rules read "<field> <op> <value>" over HRV and heart-rate fields,
// plus "stress == <level>".
package alerts
