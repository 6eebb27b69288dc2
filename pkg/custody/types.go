package custody

// User is a root identity record inside an organization.
type User struct {
	UserID    string   `json:"userId"`
	UserName  string   `json:"userName"`
	UserEmail string   `json:"userEmail,omitempty"`
	UserTags  []string `json:"userTags,omitempty"`
}

// Organization is the custody boundary: identities, policies and wallets are
// only valid within the organization that holds them.
type Organization struct {
	OrganizationID   string `json:"organizationId"`
	OrganizationName string `json:"organizationName"`
	Users            []User `json:"users"`
}

// FindUser resolves a root identity by id.
func (o *Organization) FindUser(userID string) (User, bool) {
	for _, u := range o.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return User{}, false
}

// APIKeyParams attaches a server-held asymmetric credential to a root user.
type APIKeyParams struct {
	APIKeyName string `json:"apiKeyName"`
	PublicKey  string `json:"publicKey"`
	CurveType  string `json:"curveType"`
}

// RootUserParams describes one root identity of a new organization.
type RootUserParams struct {
	UserName       string         `json:"userName"`
	UserEmail      string         `json:"userEmail,omitempty"`
	UserTags       []string       `json:"userTags"`
	APIKeys        []APIKeyParams `json:"apiKeys"`
	Authenticators []string       `json:"authenticators"`
	OauthProviders []string       `json:"oauthProviders"`
}

// CreateSubOrganizationRequest creates a child custody boundary under the
// parent organization.
type CreateSubOrganizationRequest struct {
	OrganizationID      string           `json:"organizationId"`
	SubOrganizationName string           `json:"subOrganizationName"`
	RootUsers           []RootUserParams `json:"rootUsers"`
	RootQuorumThreshold int              `json:"rootQuorumThreshold"`
}

// CreateSubOrganizationResult carries the new boundary's identifiers. Root
// user ids come back in the order the request listed them.
type CreateSubOrganizationResult struct {
	SubOrganizationID string   `json:"subOrganizationId"`
	RootUserIDs       []string `json:"rootUserIds"`
}

// CreatePolicyRequest installs an authorization rule. Condition and
// consensus are expressions evaluated entirely by the custody service; this
// client treats them as opaque strings.
type CreatePolicyRequest struct {
	OrganizationID string `json:"organizationId"`
	PolicyName     string `json:"policyName"`
	Effect         string `json:"effect"`
	Condition      string `json:"condition"`
	Consensus      string `json:"consensus"`
	Notes          string `json:"notes,omitempty"`
}

// AccountParams fixes the key derivation for one wallet account.
type AccountParams struct {
	Curve         string `json:"curve"`
	PathFormat    string `json:"pathFormat"`
	Path          string `json:"path"`
	AddressFormat string `json:"addressFormat"`
}

// CreateWalletRequest creates a wallet with the given account specs.
type CreateWalletRequest struct {
	OrganizationID string          `json:"organizationId"`
	WalletName     string          `json:"walletName"`
	Accounts       []AccountParams `json:"accounts"`
}

// CreateWalletResult returns the wallet id and its derived addresses.
type CreateWalletResult struct {
	WalletID  string   `json:"walletId"`
	Addresses []string `json:"addresses"`
}

// Wallet is a wallet summary as listed by the service.
type Wallet struct {
	WalletID   string `json:"walletId"`
	WalletName string `json:"walletName"`
}

// WalletAccount is a derived account inside a wallet.
type WalletAccount struct {
	WalletAccountID string `json:"walletAccountId"`
	WalletID        string `json:"walletId"`
	Curve           string `json:"curve"`
	PathFormat      string `json:"pathFormat"`
	Path            string `json:"path"`
	AddressFormat   string `json:"addressFormat"`
	PublicKey       string `json:"publicKey"`
	Address         string `json:"address,omitempty"`
}

// SignRawPayloadRequest asks the service to sign an already-final digest.
// Encoding and hash function are fixed by the caller: the payload is hex and
// must not be re-hashed.
type SignRawPayloadRequest struct {
	OrganizationID string `json:"organizationId"`
	SignWith       string `json:"signWith"`
	Payload        string `json:"payload"`
	Encoding       string `json:"encoding"`
	HashFunction   string `json:"hashFunction"`
}

// SignRawPayloadResult carries the raw signature components. V may be empty
// or untrustworthy depending on the signer's capabilities.
type SignRawPayloadResult struct {
	V string `json:"v,omitempty"`
	R string `json:"r"`
	S string `json:"s"`
}

const (
	// EncodingHexadecimal marks the payload as hex bytes.
	EncodingHexadecimal = "PAYLOAD_ENCODING_HEXADECIMAL"
	// HashFunctionNoOp tells the signer the digest is already final.
	HashFunctionNoOp = "HASH_FUNCTION_NO_OP"

	// EffectAllow is the allow policy effect.
	EffectAllow = "EFFECT_ALLOW"

	// CurveSecp256k1 and friends are the fixed account parameters for
	// network-compatible signing keys.
	CurveSecp256k1          = "CURVE_SECP256K1"
	PathFormatBIP32         = "PATH_FORMAT_BIP32"
	AddressFormatCompressed = "ADDRESS_FORMAT_COMPRESSED"

	// CurveAPIKeyP256 is the curve of server-held API credentials.
	CurveAPIKeyP256 = "API_KEY_CURVE_P256"
)
