package internal

import (
	"fmt"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// SentinelTierName 未配置零分段位時自動補上的段位名稱
const SentinelTierName = "None"

// Tier 段位
type Tier struct {
	Name         string   `yaml:"name" json:"name"`
	MinPoints    int64    `yaml:"points" json:"min_points"`
	Color        string   `yaml:"color" json:"color,omitempty"`
	Tag          string   `yaml:"tag" json:"tag,omitempty"`
	Capabilities []string `yaml:"permissions" json:"capabilities,omitempty"`
}

// ScoreboardTag 計分板上顯示的標籤；未設定短標籤時使用 [名稱]
func (t Tier) ScoreboardTag() string {
	if t.Tag != "" {
		return t.Tag
	}
	return "[" + t.Name + "]"
}

// RankTable 依門檻遞增排序的段位表，載入後唯讀
//
// 不變量：tiers[0] 是唯一 MinPoints == 0 的哨兵段位。
type RankTable struct {
	tiers []Tier
}

// rankFile 段位設定檔格式
type rankFile struct {
	Ranks []Tier `yaml:"ranks"`
}

// NewRankTable 驗證並建立段位表
func NewRankTable(tiers []Tier) (*RankTable, error) {
	sorted := make([]Tier, 0, len(tiers)+1)
	names := make(map[string]struct{}, len(tiers))
	sentinels := 0

	for _, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("tier name must not be empty")
		}
		if t.MinPoints < 0 {
			return nil, fmt.Errorf("tier %q has negative threshold %d", t.Name, t.MinPoints)
		}
		if _, dup := names[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tier name %q", t.Name)
		}
		names[t.Name] = struct{}{}
		if t.MinPoints == 0 {
			sentinels++
		}
		t.Capabilities = slices.Clone(t.Capabilities)
		sorted = append(sorted, t)
	}

	if sentinels > 1 {
		return nil, fmt.Errorf("expected exactly one zero-point tier, got %d", sentinels)
	}
	if sentinels == 0 {
		if _, taken := names[SentinelTierName]; taken {
			return nil, fmt.Errorf("tier %q must have a zero threshold", SentinelTierName)
		}
		sorted = append(sorted, Tier{Name: SentinelTierName, Color: "default"})
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPoints < sorted[j].MinPoints
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].MinPoints == sorted[i-1].MinPoints {
			return nil, fmt.Errorf("tiers %q and %q share threshold %d",
				sorted[i-1].Name, sorted[i].Name, sorted[i].MinPoints)
		}
	}

	return &RankTable{tiers: sorted}, nil
}

// LoadRankTable 從 YAML 檔案載入段位表
func LoadRankTable(path string) (*RankTable, error) {
	// #nosec G304 - path 來自配置檔
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rank file: %w", err)
	}

	var file rankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rank file: %w", err)
	}

	return NewRankTable(file.Ranks)
}

// TierFor 返回 MinPoints <= points 的最高段位，永不失敗
func (r *RankTable) TierFor(points int64) Tier {
	// 第一個門檻大於 points 的位置
	idx := sort.Search(len(r.tiers), func(i int) bool {
		return r.tiers[i].MinPoints > points
	})
	if idx == 0 {
		return r.tiers[0]
	}
	return r.tiers[idx-1]
}

// Sentinel 返回零分哨兵段位
func (r *RankTable) Sentinel() Tier {
	return r.tiers[0]
}

// Lookup 依名稱查找段位
func (r *RankTable) Lookup(name string) (Tier, bool) {
	for _, t := range r.tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Tiers 返回段位表副本
func (r *RankTable) Tiers() []Tier {
	return slices.Clone(r.tiers)
}
