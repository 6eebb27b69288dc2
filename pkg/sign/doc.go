// Package sign holds the signature plumbing between the remote custody
// signer and the Stacks wire format.
//
// A remote signer returns raw ECDSA components (r, s) and, depending on its
// capabilities, a recovery indicator v. Stacks spending conditions embed a
// 65-byte signature laid out as v||r||s. When v is missing or cannot be
// trusted, the correct value has to be discovered by trial: the four
// candidates are assembled and attempted against the network in a fixed
// priority order until one is accepted.
package sign
