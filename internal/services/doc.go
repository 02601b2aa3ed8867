// Package services defines the [Source] capability used by the download pipeline and implements it for YouTube.
//
// # Source Interface
//
// A source resolves a resource id into [models.Resource] metadata and acquires a
// byte stream for one chosen [models.Format]. Both calls take a [RequestConfig]
// built fresh by [RequestBuilder] so cookies and the rotated proxy are current.
//
// # YouTube Implementation
//
// [YouTubeSource] wraps github.com/kkdai/youtube/v2. A new client is created per
// call from the request configuration, so each acquisition can egress through a
// different proxy.
//
// # Format Selection
//
// [SelectFormat] applies the container filter and a quality selector
// (highestaudio, lowestaudio, highest, lowest, or an itag). [AudioBitrate]
// picks the first declared audio bitrate, defaulting to 192 kbps.
//
// # Error Handling
//
// Source errors are wrapped with sentinels from the shared package:
//   - [shared.ErrResourceNotFound] : unknown or removed resource
//   - [shared.ErrResourceRestricted] : private, age gated, or region blocked
//   - [shared.ErrUnexpectedStatus] : non-2xx response from the origin
//   - [shared.ErrNoFormat] : no variant passed the filter and selector
package services
