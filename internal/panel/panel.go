// Package panel 通知面板状态机
//
// 面板维护一份本地通知缓存（与服务端投递记录相互独立），负责排序渲染、
// 显隐切换与铃铛角标计算。每次状态变更都会把完整记录数组序列化写回槽位。
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 默认值
const (
	DefaultStorageKey = "notifications"
	DefaultMaxItems   = 10
	DefaultAdmin      = "Admin"
	DefaultAvatar     = "fa-user"

	// EmptyPlaceholder 无通知时的占位文本
	EmptyPlaceholder = "No notifications available"

	badgeCap = 99
)

var (
	ErrItemNotFound = errors.New("通知不存在")
	ErrDestroyed    = errors.New("面板已销毁")
	ErrNoStorage    = errors.New("未配置存储槽位")
)

// Record 面板中的一条通知，JSON 字段即槽位中的持久化格式
type Record struct {
	ID          string `json:"id"`
	Admin       string `json:"admin"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"` // Unix 毫秒
	Read        bool   `json:"read"`
	Avatar      string `json:"avatar"`
}

// Time 返回记录时间
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// State 面板显隐状态
type State int

const (
	Hidden State = iota
	Visible
)

func (s State) String() string {
	if s == Visible {
		return "visible"
	}
	return "hidden"
}

// Rect 铃铛按钮在视口中的包围盒
type Rect struct {
	Top    float64
	Right  float64
	Height float64
}

// Viewport 视口宽度与滚动偏移
type Viewport struct {
	Width   float64
	ScrollX float64
	ScrollY float64
}

// Bell 铃铛按钮，提供定位所需的几何信息
type Bell interface {
	Bounds() Rect
	Viewport() Viewport
}

// Anchor 面板锚点（文档坐标）
type Anchor struct {
	Top    float64
	Height float64
	Right  float64
}

// Item 渲染后的单条通知
type Item struct {
	Record
	Unread  bool
	TimeAgo string
}

// View 一次渲染的结果
type View struct {
	Items           []Item
	Empty           bool
	Placeholder     string
	MarkAllDisabled bool
}

// Badge 铃铛角标；Count 为真实未读数，Text 超过 99 显示 "99+"
type Badge struct {
	Count   int
	Text    string
	Visible bool
}

// Options 面板依赖与配置
type Options struct {
	Storage    Storage
	StorageKey string
	MaxItems   int
	Bell       Bell
	Clock      func() time.Time
	// Seed 槽位为空时使用的初始记录
	Seed []Record

	OnMarkAllRead func(records []Record)
	OnSeeAll      func()

	Logger *zap.Logger
}

// Panel 通知面板实例，多个实例互不影响
type Panel struct {
	mu sync.Mutex

	opts      Options
	records   []Record
	state     State
	anchor    *Anchor
	view      View
	destroyed bool
}

// New 创建面板实例，需调用 Init 加载状态
func New(opts Options) *Panel {
	if opts.StorageKey == "" {
		opts.StorageKey = DefaultStorageKey
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Panel{opts: opts, state: Hidden}
}

// ────────────────────── 生命周期 ──────────────────────

// Init 从槽位加载记录并完成首次渲染
// 槽位为空时使用 Seed（不立即写回）
func (p *Panel) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return ErrDestroyed
	}
	if p.opts.Storage == nil {
		return ErrNoStorage
	}

	data, found, err := p.opts.Storage.Load(p.opts.StorageKey)
	if err != nil {
		return fmt.Errorf("读取面板槽位失败: %w", err)
	}

	if found {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			// 槽位内容损坏时回退到初始记录
			p.opts.Logger.Warn("面板槽位内容无法解析，使用初始记录",
				zap.String("key", p.opts.StorageKey), zap.Error(err))
			records = cloneRecords(p.opts.Seed)
		}
		p.records = records
	} else {
		p.records = cloneRecords(p.opts.Seed)
	}
	if p.records == nil {
		p.records = []Record{}
	}

	p.renderLocked()
	return nil
}

// Destroy 隐藏并释放面板，之后的变更操作返回 ErrDestroyed
func (p *Panel) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = Hidden
	p.anchor = nil
	p.destroyed = true
}

// ────────────────────── 显隐 ──────────────────────

// BellClick 点击铃铛：在显示与隐藏之间切换
func (p *Panel) BellClick() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Visible {
		p.hideLocked()
	} else {
		p.showLocked()
	}
	return p.state
}

// OutsideClick 点击面板外部：强制隐藏
func (p *Panel) OutsideClick() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hideLocked()
	return p.state
}

// Show 显示面板，每次显示都根据铃铛位置重新计算锚点
func (p *Panel) Show() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showLocked()
}

// Hide 隐藏面板
func (p *Panel) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hideLocked()
}

// State 当前显隐状态
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Anchor 最近一次显示时计算的锚点，未配置铃铛或从未显示时为 nil
func (p *Panel) Anchor() *Anchor {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.anchor == nil {
		return nil
	}
	a := *p.anchor
	return &a
}

func (p *Panel) showLocked() {
	if p.destroyed {
		return
	}
	if p.opts.Bell != nil {
		rect := p.opts.Bell.Bounds()
		vp := p.opts.Bell.Viewport()
		p.anchor = &Anchor{
			Top:    rect.Top + vp.ScrollY,
			Height: rect.Height,
			Right:  vp.Width - rect.Right - vp.ScrollX,
		}
	}
	p.state = Visible
}

func (p *Panel) hideLocked() {
	p.state = Hidden
}

// ────────────────────── 渲染 ──────────────────────

// Render 重新渲染：未读在前，同组内按时间倒序，截断到 MaxItems
// 相对时间在渲染时按当前时钟计算
func (p *Panel) Render() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderLocked()
}

// View 最近一次渲染结果（不重新计算相对时间）
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneView(p.view)
}

func (p *Panel) renderLocked() View {
	if len(p.records) == 0 {
		p.view = View{Empty: true, Placeholder: EmptyPlaceholder, MarkAllDisabled: true}
		return cloneView(p.view)
	}

	sorted := cloneRecords(p.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Read != sorted[j].Read {
			return !sorted[i].Read
		}
		return sorted[i].Timestamp > sorted[j].Timestamp
	})
	if len(sorted) > p.opts.MaxItems {
		sorted = sorted[:p.opts.MaxItems]
	}

	now := p.opts.Clock()
	items := make([]Item, 0, len(sorted))
	for _, r := range sorted {
		items = append(items, Item{
			Record:  r,
			Unread:  !r.Read,
			TimeAgo: TimeAgo(now.Sub(r.Time())),
		})
	}

	p.view = View{
		Items:           items,
		MarkAllDisabled: p.unreadLocked() == 0,
	}
	return cloneView(p.view)
}

// ────────────────────── 角标 ──────────────────────

// Badge 根据当前记录计算角标，未读为 0 时不显示
func (p *Panel) Badge() Badge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return badgeFor(p.unreadLocked())
}

// UnreadCount 未读条数
func (p *Panel) UnreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unreadLocked()
}

func badgeFor(count int) Badge {
	if count <= 0 {
		return Badge{}
	}
	text := strconv.Itoa(count)
	if count > badgeCap {
		text = strconv.Itoa(badgeCap) + "+"
	}
	return Badge{Count: count, Text: text, Visible: true}
}

func (p *Panel) unreadLocked() int {
	n := 0
	for _, r := range p.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// ────────────────────── 变更 ──────────────────────

// ToggleRead 翻转单条通知的已读标记，连续两次调用恢复原状态
func (p *Panel) ToggleRead(id string) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return Record{}, ErrDestroyed
	}
	idx := p.indexLocked(id)
	if idx < 0 {
		return Record{}, ErrItemNotFound
	}
	p.records[idx].Read = !p.records[idx].Read
	rec := p.records[idx]
	if err := p.commitLocked(); err != nil {
		return rec, err
	}
	return rec, nil
}

// MarkAllAsRead 全部标记已读并回调 OnMarkAllRead
func (p *Panel) MarkAllAsRead() error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	for i := range p.records {
		p.records[i].Read = true
	}
	err := p.commitLocked()
	snapshot := cloneRecords(p.records)
	cb := p.opts.OnMarkAllRead
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if cb != nil {
		cb(snapshot)
	}
	return nil
}

// RemoveNotification 仅从本地状态删除一条通知
func (p *Panel) RemoveNotification(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return ErrDestroyed
	}
	idx := p.indexLocked(id)
	if idx < 0 {
		return ErrItemNotFound
	}
	p.records = append(p.records[:idx], p.records[idx+1:]...)
	return p.commitLocked()
}

// AddNotification 在列表头部插入一条未读通知，补齐缺省字段后返回
func (p *Panel) AddNotification(rec Record) (Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return Record{}, ErrDestroyed
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Admin == "" {
		rec.Admin = DefaultAdmin
	}
	if rec.Avatar == "" {
		rec.Avatar = DefaultAvatar
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = p.opts.Clock().UnixMilli()
	}

	p.records = append([]Record{rec}, p.records...)
	return rec, p.commitLocked()
}

// SeeAll 先隐藏面板，再回调 OnSeeAll
func (p *Panel) SeeAll() {
	p.mu.Lock()
	p.hideLocked()
	cb := p.opts.OnSeeAll
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Records 当前记录副本（插入顺序）
func (p *Panel) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneRecords(p.records)
}

// commitLocked 持久化并重新渲染
// 持久化失败时内存状态保持已变更，错误返回给调用方
func (p *Panel) commitLocked() error {
	p.renderLocked()
	if p.opts.Storage == nil {
		return ErrNoStorage
	}
	data, err := json.Marshal(p.records)
	if err != nil {
		return fmt.Errorf("序列化面板记录失败: %w", err)
	}
	if err := p.opts.Storage.Save(p.opts.StorageKey, data); err != nil {
		p.opts.Logger.Error("写入面板槽位失败", zap.String("key", p.opts.StorageKey), zap.Error(err))
		return fmt.Errorf("写入面板槽位失败: %w", err)
	}
	return nil
}

func (p *Panel) indexLocked(id string) int {
	for i := range p.records {
		if p.records[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	copy(out, in)
	return out
}

func cloneView(v View) View {
	if v.Items != nil {
		items := make([]Item, len(v.Items))
		copy(items, v.Items)
		v.Items = items
	}
	return v
}
