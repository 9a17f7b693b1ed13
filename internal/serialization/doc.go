// Package serialization stores model weights in the SafeTensors format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON object keyed by tensor name]
//	  [Tensor data: raw little-endian bytes]
//
// Every tensor entry carries its dtype, shape and [begin, end) byte offsets
// into the data section. Tensors are written in alphabetical order. The
// optional "__metadata__" entry holds string pairs; the writer adds a
// SHA-256 checksum of the data section there and the reader verifies it
// when present.
//
// Only F64 tensors are written. Private weights are revealed before they
// reach this package, so a checkpoint never contains shares.
//
// Example usage:
//
//	err := serialization.WriteSafeTensors("model.safetensors", model.StateDict(),
//	    map[string]string{"epoch": "3"})
//
//	tensors, meta, err := serialization.ReadSafeTensors("model.safetensors")
package serialization
