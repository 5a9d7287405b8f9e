// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the line-oriented answer stream produced by the
// CampusGPT query endpoint.
//
// Each meaningful line has the form
//
//	data: {"type": "sources"|"chunk"|"done"|"error", ...}
//
// Network chunks may split lines and multi-byte UTF-8 sequences at any byte;
// Decoder reassembles both. Lines without the exact "data: " prefix are
// ignored and malformed frames are skipped, so a single bad line never ends
// the stream.
//
// # Usage
//
//	r := stream.NewReader(resp.Body, stream.WithLogger(logger))
//	for {
//	    ev, err := r.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    handle(ev)
//	}
package stream
