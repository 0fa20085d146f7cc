// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package agent adapts an llm.Provider into a debate.Generator.

# Overview

LLMGenerator turns a speaker persona and the recent context window into a
chat request: the persona becomes the system message, the topic kickoff is
always the first user message, turns the current speaker gave earlier are
replayed as assistant messages and everyone else's turns arrive as user
messages prefixed with the speaker name.

The speaker, session and round are read from the request context, where
debate.Session places them before each call.

# Resilience

Every completion goes through a retry.Retryer (only retryable llm errors
are retried) wrapped around a circuitbreaker.CircuitBreaker. Any failure,
including an empty choice list, is reported as UPSTREAM_UNAVAILABLE so the
session pauses without recording a turn.

# Observability

Each call opens a "debate.generate" span and records OTel counters and a
latency histogram. A Prometheus metrics.Collector can be attached with
WithMetrics.
*/
package agent
