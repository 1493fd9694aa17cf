// Package streaming serves byte windows of stored video files over
// HTTP.
//
// Two legacy API behaviors are preserved as explicit, per-endpoint
// strategies rather than merged:
//
//   - what to do when the request carries no Range header: serve the
//     whole file with a 200, or refuse with a 416 ("range required");
//   - how to complete an open-ended range (bytes=N-): read to the end
//     of the file, or cap the response at a fixed window (8 MiB by
//     default) so seeking clients get bounded chunks.
//
// Responses are written through a bounded copy buffer; the full
// requested slice is never loaded into memory.
package streaming
