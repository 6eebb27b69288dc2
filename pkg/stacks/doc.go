// Package stacks implements the minimal Stacks blockchain primitives the
// node needs to move funds from a remotely held key: c32check address
// derivation from a compressed secp256k1 public key, single-signature
// transaction wire encoding for STX token transfers and contract calls, and
// the pre-sign sighash construction that commits to the transaction content
// together with its auth type, fee and nonce.
//
// Amounts are carried as integers denominated in the smallest unit of the
// asset (micro-STX, sats). No unit scaling happens in this package.
package stacks
