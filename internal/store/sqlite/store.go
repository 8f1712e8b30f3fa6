package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradewise/internal/market"
	"tradewise/internal/store"
	"tradewise/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const dateLayout = "2006-01-02"

// SqliteStore 基于 Gorm + SQLite 实现 store.Store。
type SqliteStore struct {
	db *gorm.DB
}

// NewSqliteStore 打开（必要时创建）数据库并迁移表结构。
func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db)
}

// NewSqliteStoreFromDB 复用已有连接（测试用）。
func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	return newSqliteStore(db)
}

func newSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	models := []interface{}{
		&model.AssetModel{},
		&model.TransactionModel{},
		&model.PricePointModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL：读并发走 HTTP，写并发靠唯一约束兜底。
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SqliteStore) EnsureAsset(ctx context.Context, symbol, assetType string) (store.Asset, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return store.Asset{}, fmt.Errorf("symbol 不能为空")
	}
	now := time.Now().Unix()
	rec := model.AssetModel{
		Symbol:        symbol,
		AssetType:     assetType,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	// 并发 EnsureAsset 靠 symbol 唯一索引收敛到同一行。
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "symbol"}}, DoNothing: true}).
		Create(&rec)
	if res.Error != nil {
		return store.Asset{}, res.Error
	}
	var got model.AssetModel
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&got).Error; err != nil {
		return store.Asset{}, err
	}
	return assetFromModel(got), nil
}

func (s *SqliteStore) UpdateAssetName(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&model.AssetModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now().Unix()}).Error
}

// MarkAssetSynced 把最近一次成功同步的来源与行数记到 meta JSON 里。
func (s *SqliteStore) MarkAssetSynced(ctx context.Context, id int64, source string, rows int) error {
	meta := map[string]interface{}{
		"last_sync_source": source,
		"last_sync_rows":   rows,
		"last_sync_at":     time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.AssetModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"meta": datatypes.JSON(raw), "updated_at": time.Now().Unix()}).Error
}

func (s *SqliteStore) Assets(ctx context.Context) ([]store.Asset, error) {
	var recs []model.AssetModel
	if err := s.db.WithContext(ctx).Order("symbol ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]store.Asset, 0, len(recs))
	for _, r := range recs {
		out = append(out, assetFromModel(r))
	}
	return out, nil
}

func (s *SqliteStore) AssetBySymbol(ctx context.Context, symbol string) (store.Asset, bool, error) {
	var rec model.AssetModel
	err := s.db.WithContext(ctx).Where("symbol = ?", strings.TrimSpace(symbol)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Asset{}, false, nil
	}
	if err != nil {
		return store.Asset{}, false, err
	}
	return assetFromModel(rec), true, nil
}

func (s *SqliteStore) InsertTransaction(ctx context.Context, tx store.Transaction) (bool, error) {
	if _, err := time.Parse(dateLayout, tx.Date); err != nil {
		return false, fmt.Errorf("invalid transaction date %q: %w", tx.Date, err)
	}
	rec := model.TransactionModel{
		AssetID:       tx.AssetID,
		Date:          tx.Date,
		Side:          tx.Side,
		Quantity:      tx.Quantity,
		Price:         tx.Price,
		Fees:          tx.Fees,
		CreatedAtUnix: time.Now().Unix(),
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "asset_id"}, {Name: "date"}, {Name: "side"},
				{Name: "quantity"}, {Name: "price"},
			},
			DoNothing: true,
		}).
		Create(&rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *SqliteStore) Transactions(ctx context.Context) ([]store.Transaction, error) {
	return s.transactions(s.db.WithContext(ctx))
}

func (s *SqliteStore) transactions(db *gorm.DB) ([]store.Transaction, error) {
	var recs []model.TransactionModel
	if err := db.Order("date ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]store.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, txFromModel(r))
	}
	return out, nil
}

func (s *SqliteStore) TransactionsByAsset(ctx context.Context, assetID int64) ([]store.Transaction, error) {
	var recs []model.TransactionModel
	err := s.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("date ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]store.Transaction, 0, len(recs))
	for _, r := range recs {
		out = append(out, txFromModel(r))
	}
	return out, nil
}

func (s *SqliteStore) UpsertPricePoints(ctx context.Context, assetID int64, rows []market.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	inserted := 0
	// 分批写，单批失败只影响后续批次：已提交的前缀保留。
	const batch = 500
	for lo := 0; lo < len(rows); lo += batch {
		hi := lo + batch
		if hi > len(rows) {
			hi = len(rows)
		}
		recs := make([]model.PricePointModel, 0, hi-lo)
		for _, r := range rows[lo:hi] {
			recs = append(recs, model.PricePointModel{
				AssetID:       assetID,
				Date:          r.Date.Format(dateLayout),
				Open:          r.Open,
				High:          r.High,
				Low:           r.Low,
				Close:         r.Close,
				QfqOpen:       r.QfqOpen,
				QfqHigh:       r.QfqHigh,
				QfqLow:        r.QfqLow,
				QfqClose:      r.QfqClose,
				AdjOpen:       r.HfqOpen,
				AdjHigh:       r.HfqHigh,
				AdjLow:        r.HfqLow,
				AdjClose:      r.HfqClose,
				Volume:        r.Volume,
				CreatedAtUnix: now,
			})
		}
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "asset_id"}, {Name: "date"}},
				DoNothing: true,
			}).
			Create(&recs)
		if res.Error != nil {
			return inserted, res.Error
		}
		inserted += int(res.RowsAffected)
	}
	return inserted, nil
}

func (s *SqliteStore) PricesByAsset(ctx context.Context, assetID int64) ([]store.PricePoint, error) {
	var recs []model.PricePointModel
	err := s.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("date ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]store.PricePoint, 0, len(recs))
	for _, r := range recs {
		out = append(out, priceFromModel(r))
	}
	return out, nil
}

// Snapshot 在单个读事务内加载全量数据，保证引擎扫描期间的视图一致。
func (s *SqliteStore) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{
		Assets: make(map[int64]store.Asset),
		Prices: make(map[int64][]store.PricePoint),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assets []model.AssetModel
		if err := tx.Find(&assets).Error; err != nil {
			return err
		}
		for _, a := range assets {
			snap.Assets[a.ID] = assetFromModel(a)
		}
		txs, err := s.transactions(tx)
		if err != nil {
			return err
		}
		snap.Transactions = txs
		var prices []model.PricePointModel
		if err := tx.Order("asset_id ASC, date ASC").Find(&prices).Error; err != nil {
			return err
		}
		for _, p := range prices {
			snap.Prices[p.AssetID] = append(snap.Prices[p.AssetID], priceFromModel(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func assetFromModel(m model.AssetModel) store.Asset {
	return store.Asset{ID: m.ID, Symbol: m.Symbol, Name: m.Name, AssetType: m.AssetType}
}

func txFromModel(m model.TransactionModel) store.Transaction {
	return store.Transaction{
		ID:       m.ID,
		AssetID:  m.AssetID,
		Date:     m.Date,
		Side:     m.Side,
		Quantity: m.Quantity,
		Price:    m.Price,
		Fees:     m.Fees,
	}
}

func priceFromModel(m model.PricePointModel) store.PricePoint {
	return store.PricePoint{
		AssetID:  m.AssetID,
		Date:     m.Date,
		Open:     m.Open,
		High:     m.High,
		Low:      m.Low,
		Close:    m.Close,
		QfqOpen:  m.QfqOpen,
		QfqHigh:  m.QfqHigh,
		QfqLow:   m.QfqLow,
		QfqClose: m.QfqClose,
		AdjOpen:  m.AdjOpen,
		AdjHigh:  m.AdjHigh,
		AdjLow:   m.AdjLow,
		AdjClose: m.AdjClose,
		Volume:   m.Volume,
	}
}

var _ store.Store = (*SqliteStore)(nil)
