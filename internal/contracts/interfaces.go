package contracts

import (
	"context"
)

// DataRefresher brings the evaluator's market data up to date (backfill)
// ⭐ SSOT: 세대마다 데이터 갱신 인터페이스
type DataRefresher interface {
	Refresh(ctx context.Context) error
}

// ResultSink receives the scored results of one generation
// ⭐ SSOT: 세대 결과 저장 인터페이스 (CSV, Postgres, Redis)
type ResultSink interface {
	Name() string
	WriteResults(ctx context.Context, record *GenerationRecord) error
}

// CheckpointStore persists a resumable snapshot of every population
// ⭐ SSOT: 체크포인트 저장 인터페이스 (JSON 파일, Redis)
type CheckpointStore interface {
	Name() string
	SaveCheckpoint(ctx context.Context, snapshot *Snapshot) error
}
