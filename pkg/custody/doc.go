// Package custody is a client for the external custody service that holds
// key material and evaluates signing policies. Every request is stamped with
// an ECDSA P-256 API credential; the service resolves the stamp to an
// identity and runs its policy engine before executing anything.
//
// The node uses two credential sets: the parent credential, scoped to the
// parent organization for directory lookups and sub-organization creation,
// and the delegated-operator credential, which becomes a root identity
// inside each provisioned sub-organization and is the identity policies
// authorize to sign.
package custody
