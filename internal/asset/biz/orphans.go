package biz

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/lk2023060901/signage-backend/internal/asset/storage"
)

// Orphan reasons
const (
	OrphanNoRow          = "no catalog row"
	OrphanTenantMismatch = "tenant mismatch"
	OrphanUnrecognized   = "unrecognized directory"
)

// Orphan 存储卷上没有对应资产记录的目录
type Orphan struct {
	Dir      string
	TenantID int64
	AssetID  int64
	Reason   string
}

// FindOrphans 扫描 <tenantId>_<name>/<assetId> 目录, 只读
func FindOrphans(ctx context.Context, volume storage.Volume, repo AssetRepo) ([]Orphan, error) {
	tenantDirs, err := volume.ListDirs(ctx, "")
	if err != nil {
		return nil, err
	}

	var orphans []Orphan
	for _, tenantDir := range tenantDirs {
		tenantID, ok := parseTenantDir(tenantDir)
		if !ok {
			orphans = append(orphans, Orphan{Dir: tenantDir, Reason: OrphanUnrecognized})
			continue
		}

		assetDirs, err := volume.ListDirs(ctx, tenantDir)
		if err != nil {
			return nil, err
		}

		ids := make([]int64, 0, len(assetDirs))
		for _, name := range assetDirs {
			id, err := strconv.ParseInt(name, 10, 64)
			if err != nil || id <= 0 {
				orphans = append(orphans, Orphan{Dir: tenantDir + "/" + name, TenantID: tenantID, Reason: OrphanUnrecognized})
				continue
			}
			ids = append(ids, id)
		}

		assets, err := repo.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			o := Orphan{Dir: tenantDir + "/" + strconv.FormatInt(id, 10), TenantID: tenantID, AssetID: id}
			asset, found := assets[id]
			switch {
			case !found:
				o.Reason = OrphanNoRow
			case asset.TenantID != tenantID:
				o.Reason = OrphanTenantMismatch
			default:
				continue
			}
			orphans = append(orphans, o)
		}
	}

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Dir < orphans[j].Dir })
	return orphans, nil
}

func parseTenantDir(name string) (int64, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	id, err := strconv.ParseInt(prefix, 10, 64)
	return id, err == nil && id > 0
}
