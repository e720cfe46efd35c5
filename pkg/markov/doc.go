/*
Package markov implements the generative engine behind a text-producing bot:
a bounded-context Markov chain built from ingested token sequences, and a
keyword-biased sentence synthesizer that keeps the best of several stochastic
attempts.

Models are plain in-memory structures owned by their callers, with JSON
snapshots for persistence. Generation takes an explicit random source, so
seeded output is reproducible without touching global state.
*/
package markov
