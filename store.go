package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TradingOrganization mirrors a custody sub-organization the backend
// operates in.
type TradingOrganization struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (TradingOrganization) TableName() string {
	return "trading_organizations"
}

// TradingWallet mirrors a custody wallet inside a trading organization.
type TradingWallet struct {
	ID             string    `gorm:"column:id;primaryKey"`
	OrganizationID string    `gorm:"column:organization_id;not null;index"`
	Name           string    `gorm:"column:name;not null"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (TradingWallet) TableName() string {
	return "trading_wallets"
}

// TradingWalletAccount mirrors a single derived account of a wallet. The
// chain address is computed locally from the compressed public key and
// stored alongside the custody metadata.
type TradingWalletAccount struct {
	ID             string    `gorm:"column:id;primaryKey"`
	WalletID       string    `gorm:"column:wallet_id;not null;index"`
	OrganizationID string    `gorm:"column:organization_id;not null;index"`
	Curve          string    `gorm:"column:curve;not null"`
	AddressFormat  string    `gorm:"column:address_format;not null"`
	Path           string    `gorm:"column:path"`
	PublicKey      string    `gorm:"column:public_key;not null"`
	StacksAddress  string    `gorm:"column:stacks_address;index"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (TradingWalletAccount) TableName() string {
	return "trading_wallet_accounts"
}

// EligibleForSigning reports whether the account carries a key the signing
// pipeline can use: secp256k1, compressed address format, and a 33-byte
// compressed public key.
func (a *TradingWalletAccount) EligibleForSigning() bool {
	if !strings.EqualFold(a.Curve, "CURVE_SECP256K1") {
		return false
	}
	if !strings.EqualFold(a.AddressFormat, "ADDRESS_FORMAT_COMPRESSED") {
		return false
	}
	key := strings.TrimPrefix(a.PublicKey, "0x")
	return len(key) == 66
}

// BroadcastRecord is the audit trail of one transaction submission.
type BroadcastRecord struct {
	ID             int64          `gorm:"primaryKey"`
	OrganizationID string         `gorm:"column:organization_id;index"`
	Address        string         `gorm:"column:address;not null"`
	TxID           string         `gorm:"column:tx_id;index"`
	Kind           string         `gorm:"column:tx_kind;not null"`
	RecoveryID     string         `gorm:"column:recovery_id"`
	Attempts       int            `gorm:"column:attempts;default:0"`
	Accepted       bool           `gorm:"column:accepted;not null"`
	Rejection      datatypes.JSON `gorm:"column:rejection;type:text"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
}

func (BroadcastRecord) TableName() string {
	return "broadcast_records"
}

// AccountContext is everything the signing paths need about one account:
// which organization to sign under, with which key, from which address.
type AccountContext struct {
	OrganizationID string
	WalletID       string
	AccountID      string
	PublicKey      string
	Address        string
}

// Store is the persistence layer over the mirrored custody metadata and the
// broadcast audit trail.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// UpsertOrganization writes or refreshes one mirrored organization row.
func (s *Store) UpsertOrganization(org TradingOrganization) error {
	org.UpdatedAt = time.Now()
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&org).Error
}

// UpsertWallet writes or refreshes one mirrored wallet row.
func (s *Store) UpsertWallet(wallet TradingWallet) error {
	wallet.UpdatedAt = time.Now()
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"organization_id", "name", "updated_at"}),
	}).Create(&wallet).Error
}

// UpsertWalletAccount writes or refreshes one mirrored account row.
func (s *Store) UpsertWalletAccount(account TradingWalletAccount) error {
	account.UpdatedAt = time.Now()
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet_id", "organization_id", "curve", "address_format", "path", "public_key", "stacks_address", "updated_at"}),
	}).Create(&account).Error
}

// ListOrganizations returns every mirrored organization.
func (s *Store) ListOrganizations() ([]TradingOrganization, error) {
	var orgs []TradingOrganization
	if err := s.db.Order("created_at ASC").Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	return orgs, nil
}

// ListWallets returns the mirrored wallets of one organization.
func (s *Store) ListWallets(orgID string) ([]TradingWallet, error) {
	var wallets []TradingWallet
	if err := s.db.Where("organization_id = ?", orgID).Find(&wallets).Error; err != nil {
		return nil, fmt.Errorf("query wallets for %s: %w", orgID, err)
	}
	return wallets, nil
}

// ListWalletAccounts returns the mirrored accounts of one wallet.
func (s *Store) ListWalletAccounts(walletID string) ([]TradingWalletAccount, error) {
	var accounts []TradingWalletAccount
	if err := s.db.Where("wallet_id = ?", walletID).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("query accounts for %s: %w", walletID, err)
	}
	return accounts, nil
}

// GetAccountContext resolves the signing context for a wallet account,
// refusing accounts whose key the pipeline cannot sign with.
func (s *Store) GetAccountContext(accountID string) (*AccountContext, error) {
	var account TradingWalletAccount
	err := s.db.Where("id = ?", accountID).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, &NotFoundError{Kind: "wallet account", ID: accountID}
	case err != nil:
		return nil, fmt.Errorf("query account %s: %w", accountID, err)
	}
	if !account.EligibleForSigning() {
		return nil, ValidationErrorf("account %s has no usable signing key", accountID)
	}
	return &AccountContext{
		OrganizationID: account.OrganizationID,
		WalletID:       account.WalletID,
		AccountID:      account.ID,
		PublicKey:      account.PublicKey,
		Address:        account.StacksAddress,
	}, nil
}

// GetAccountByAddress resolves the signing context for a chain address.
func (s *Store) GetAccountByAddress(address string) (*AccountContext, error) {
	var account TradingWalletAccount
	err := s.db.Where("stacks_address = ?", address).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, &NotFoundError{Kind: "wallet account", ID: address}
	case err != nil:
		return nil, fmt.Errorf("query account by address %s: %w", address, err)
	}
	return s.GetAccountContext(account.ID)
}

// RecordBroadcast appends one submission outcome to the audit trail.
func (s *Store) RecordBroadcast(orgID, address string, kind TxKind, outcome *BroadcastOutcome) error {
	record := BroadcastRecord{
		OrganizationID: orgID,
		Address:        address,
		TxID:           outcome.TxID,
		Kind:           string(kind),
		RecoveryID:     outcome.RecoveryID,
		Attempts:       outcome.Attempts,
		Accepted:       outcome.Accepted(),
		CreatedAt:      time.Now(),
	}
	if outcome.Rejection != nil {
		data, err := json.Marshal(map[string]string{
			"code":    outcome.Rejection.Code,
			"reason":  outcome.Rejection.Reason,
			"message": outcome.Rejection.Message(),
		})
		if err != nil {
			return fmt.Errorf("marshal rejection: %w", err)
		}
		record.Rejection = data
	}
	return s.db.Create(&record).Error
}

// ListBroadcasts returns submissions for an organization, newest first by
// default, paged per the options.
func (s *Store) ListBroadcasts(orgID string, options *ListOptions) ([]BroadcastRecord, error) {
	var records []BroadcastRecord
	query := applyListOptions(s.db.Where("organization_id = ?", orgID), "created_at", SortTypeDescending, options)
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query broadcasts for %s: %w", orgID, err)
	}
	return records, nil
}
