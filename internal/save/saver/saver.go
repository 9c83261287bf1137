package saver

import (
	"os"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/lk2023060901/save-garden-go/internal/save/decoder"
	"github.com/lk2023060901/save-garden-go/internal/save/encoder"
	"github.com/lk2023060901/save-garden-go/internal/save/registry"
	"github.com/lk2023060901/save-garden-go/internal/save/textcodec"
	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/log"
	"github.com/lk2023060901/save-garden-go/pkg/metrics"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// Context 是读档过程中的环境引用，透传给调用指令的处理方法。
//
// Ref 由宿主提供，典型用法是携带场景/关卡对象，
// 让处理方法能把存档中的整数标识还原为活对象引用。
type Context struct {
	Decoder *decoder.Decoder
	Ref     any
}

// Apply 以默认方式把记录应用到目标上，
// 即按顺序解码每个子节点并按其指令赋值或调用处理方法。
func (c *Context) Apply(target decoder.Target, n *tree.Node) error {
	return c.Decoder.Apply(target, n, c.Ref)
}

// Saveable 是可存档对象的约定。
//
// 引擎只生产和消费记录树，从不构造宿主对象：
// 多态记录对应哪个具体类型、如何实例化，完全由宿主在调用
// LoadFromSaveData 之前自行决定。
type Saveable interface {
	// SaveData 构建并返回该对象的存档记录，
	// 通常先取父类型的记录，再用 enc.Encode 追加自己的字段。
	// forLevel 区分关卡存档与进行中游戏的存档。
	SaveData(enc *encoder.Encoder, forLevel bool) (*tree.Node, error)

	// LoadFromSaveData 从记录中恢复对象。
	// 默认实现即 ctx.Apply(self, n)；需要拦截特定指令的对象
	// 可以自行处理后，把其余指令交还默认行为。
	LoadFromSaveData(n *tree.Node, ctx *Context) error
}

// NewRecord 创建一个以 v 的具体类型名为标签的空记录节点。
// 供 Saveable.SaveData 的实现起手使用。
func NewRecord(v any) *tree.Node {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return tree.NewNode(tree.TypeNone)
	}
	if t.Name() != "" {
		return tree.NewNode(t.Name())
	}
	return tree.NewNode(t.String())
}

// Options 用于构造 Saver 的依赖注入参数。
type Options struct {
	// Registry 为自定义类型的编解码表，不允许为 nil。
	Registry *registry.Registry

	// MaxDepth 为编码侧对象图的最大递归深度，为 0 时使用默认值。
	MaxDepth int
}

// Saver 是存读档的入口：组合 Encoder/Decoder 与行式文本编解码，
// 负责文件句柄的获取与释放。
type Saver struct {
	reg *registry.Registry
	enc *encoder.Encoder
	dec *decoder.Decoder
}

// New 创建一个基于给定依赖的 Saver。
func New(opts Options) (*Saver, error) {
	if opts.Registry == nil {
		return nil, merr.WrapErrParameterMissing("registry", "failed to create saver")
	}
	enc, err := encoder.New(encoder.Options{
		Registry: opts.Registry,
		MaxDepth: opts.MaxDepth,
	})
	if err != nil {
		return nil, err
	}
	dec, err := decoder.New(decoder.Options{
		Registry: opts.Registry,
	})
	if err != nil {
		return nil, err
	}
	return &Saver{
		reg: opts.Registry,
		enc: enc,
		dec: dec,
	}, nil
}

// Encoder 返回内部的 Encoder，供 Saveable.SaveData 使用。
func (s *Saver) Encoder() *encoder.Encoder {
	return s.enc
}

// Decoder 返回内部的 Decoder。
func (s *Saver) Decoder() *decoder.Decoder {
	return s.dec
}

// NewContext 创建一个携带环境引用的读档上下文。
func (s *Saver) NewContext(ref any) *Context {
	return &Context{
		Decoder: s.dec,
		Ref:     ref,
	}
}

// Save 获取 root 的存档记录并写入指定文件。
//
// I/O 失败原样向调用方传播，不重试也不清理半成品文件，
// 但保证文件句柄在任何退出路径上都被释放。
func (s *Saver) Save(root Saveable, path string, forLevel bool) error {
	start := time.Now()

	record, err := root.SaveData(s.enc, forLevel)
	if err != nil {
		metrics.SaveOps.WithLabelValues(metrics.SaveOpLabel, metrics.FailLabel).Inc()
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		metrics.SaveOps.WithLabelValues(metrics.SaveOpLabel, metrics.FailLabel).Inc()
		return merr.WrapErrIoFailed(path, err)
	}

	writeErr := textcodec.Write(file, record)
	closeErr := file.Close()
	if err := merr.Combine(writeErr, closeErr); err != nil {
		metrics.SaveOps.WithLabelValues(metrics.SaveOpLabel, metrics.FailLabel).Inc()
		return merr.WrapErrIoFailed(path, err)
	}

	if info, err := os.Stat(path); err == nil {
		metrics.SaveFileBytes.Observe(float64(info.Size()))
	}
	metrics.SaveOps.WithLabelValues(metrics.SaveOpLabel, metrics.SuccessLabel).Inc()
	metrics.SaveDuration.WithLabelValues(metrics.SaveOpLabel).
		Observe(float64(time.Since(start).Milliseconds()))

	log.Debug("save data written",
		zap.String("path", path),
		zap.Bool("for_level", forLevel),
		zap.Duration("cost", time.Since(start)))
	return nil
}

// Load 读取指定文件并返回其根记录。
// 由调用方决定把记录交给哪个对象的 LoadFromSaveData。
func (s *Saver) Load(path string) (*tree.Node, error) {
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		metrics.SaveOps.WithLabelValues(metrics.LoadOpLabel, metrics.FailLabel).Inc()
		return nil, merr.WrapErrIoFailed(path, err)
	}
	defer file.Close()

	record, err := textcodec.Read(file)
	if err != nil {
		metrics.SaveOps.WithLabelValues(metrics.LoadOpLabel, metrics.FailLabel).Inc()
		return nil, err
	}

	metrics.SaveOps.WithLabelValues(metrics.LoadOpLabel, metrics.SuccessLabel).Inc()
	metrics.SaveDuration.WithLabelValues(metrics.LoadOpLabel).
		Observe(float64(time.Since(start).Milliseconds()))

	log.Debug("save data loaded",
		zap.String("path", path),
		zap.Duration("cost", time.Since(start)))
	return record, nil
}

// Wrapper 把一个普通值（map、切片等）包装成 Saveable，
// 省去为简单数据专门定义类型的麻烦。
//
// 存档时把值写入 data 字段，读档后从 Data 取回。
type Wrapper struct {
	Data any
}

var _ Saveable = (*Wrapper)(nil)

// SaveData 实现 Saveable.SaveData。
func (w *Wrapper) SaveData(enc *encoder.Encoder, forLevel bool) (*tree.Node, error) {
	record := NewRecord(w)
	child, err := enc.Encode(tree.Assign("data"), w.Data)
	if err != nil {
		return nil, err
	}
	record.AppendNode(child)
	return record, nil
}

// LoadFromSaveData 实现 Saveable.LoadFromSaveData。
func (w *Wrapper) LoadFromSaveData(n *tree.Node, ctx *Context) error {
	return ctx.Apply(w, n)
}

// ApplyField 实现 decoder.Target。
func (w *Wrapper) ApplyField(name string, value any) error {
	if name != "data" {
		return merr.WrapErrSaveDirectiveInvalid(name, "unknown wrapper field")
	}
	w.Data = value
	return nil
}

// ApplyHandler 实现 decoder.Target。
func (w *Wrapper) ApplyHandler(name string, value any, ctx any) error {
	return merr.WrapErrSaveDirectiveInvalid(name, "wrapper has no handlers")
}
