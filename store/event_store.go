package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"salepage/cms/database"
	"salepage/cms/models"
	"salepage/cms/stats"
)

// EventStore keeps storefront product events in ClickHouse and serves them
// back as per-product daily statistics.
type EventStore struct {
	DB     *database.ClickHouseClient
	logger zerolog.Logger
}

func NewEventStore(chClient *database.ClickHouseClient, logger zerolog.Logger) *EventStore {
	return &EventStore{DB: chClient, logger: logger}
}

func (s *EventStore) InsertProductEvents(ctx context.Context, events []models.ProductEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO product_events (
			event_id, event_type, product_id, product_name, user_id, session_id,
			timestamp, amount, quantity, ship_cod, ip_address, user_agent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.EventID,
			event.EventType,
			event.ProductID,
			event.ProductName,
			event.UserID,
			event.SessionID,
			event.Timestamp,
			event.Amount,
			event.Quantity,
			event.ShipCod,
			event.IPAddress,
			event.UserAgent,
		)
		if err != nil {
			s.logger.Warn().Err(err).Str("event_id", event.EventID).Msg("skipping event that does not fit the batch")
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.logger.Debug().Int("count", len(events)).Msg("inserted product events")
	return nil
}

// dailyRow is one product's counters for one day as the warehouse returns them.
type dailyRow struct {
	ProductID   string
	ProductName string
	Day         time.Time
	Purchase    float64
	View        uint64
	Buy         uint64
	ShipCod     float64
	User        uint64
	Orders      uint64
}

const productStatisticsQuery = `
	SELECT
		product_id,
		any(product_name) AS product_name,
		toDate(timestamp, 'UTC') AS day,
		sumIf(amount, event_type = 'purchase') AS total_purchase,
		countIf(event_type = 'product_view') AS total_view,
		sumIf(toUInt64(quantity), event_type = 'purchase') AS total_buy,
		sumIf(ship_cod, event_type = 'purchase') AS total_ship_cod,
		uniqIf(user_id, event_type = 'purchase') AS total_user,
		countIf(event_type = 'purchase') AS total_orders
	FROM product_events
	WHERE timestamp >= ? AND timestamp <= ?
	GROUP BY product_id, day
	ORDER BY product_id ASC, day ASC
`

// ProductStatistics aggregates events per product per UTC day over q.Range.
// Token is ignored; the warehouse is not tenant scoped.
func (s *EventStore) ProductStatistics(ctx context.Context, q stats.Query) ([]stats.Record, error) {
	if err := q.Range.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.DB.Conn.Query(ctx, productStatisticsQuery, q.Range.Start, q.Range.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query product statistics: %w", err)
	}
	defer rows.Close()

	var daily []dailyRow
	for rows.Next() {
		var r dailyRow
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.Day, &r.Purchase, &r.View, &r.Buy, &r.ShipCod, &r.User, &r.Orders); err != nil {
			return nil, fmt.Errorf("failed to scan product statistics row: %w", err)
		}
		daily = append(daily, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during product statistics query: %w", err)
	}

	return foldDailyRows(daily, q.Range), nil
}

// foldDailyRows groups rows by product and gives every product one bucket
// per day of the range, zero where no events happened. Products are sorted
// by id.
func foldDailyRows(rows []dailyRow, r stats.Range) []stats.Record {
	days := r.Days()
	index := make(map[time.Time]int, len(days))
	for i, d := range days {
		index[d] = i
	}

	byProduct := make(map[string]*stats.Record)
	for _, row := range rows {
		day := time.Date(row.Day.Year(), row.Day.Month(), row.Day.Day(), 0, 0, 0, 0, time.UTC)
		i, ok := index[day]
		if !ok {
			continue
		}
		rec, ok := byProduct[row.ProductID]
		if !ok {
			rec = &stats.Record{
				ProductID:   row.ProductID,
				ProductName: row.ProductName,
				Buckets:     make([]stats.Bucket, len(days)),
			}
			for j, d := range days {
				rec.Buckets[j].Label = d
			}
			byProduct[row.ProductID] = rec
		}
		c := stats.Counters{
			Purchase: row.Purchase,
			View:     float64(row.View),
			Buy:      float64(row.Buy),
			ShipCod:  row.ShipCod,
			User:     float64(row.User),
			Product:  float64(row.Orders),
		}
		rec.Buckets[i].Counters = rec.Buckets[i].Counters.Add(c)
		rec.Totals = rec.Totals.Add(c)
	}

	records := make([]stats.Record, 0, len(byProduct))
	for _, rec := range byProduct {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ProductID < records[j].ProductID })
	return records
}
