// Package xconf 提供基于 koanf 的最小化配置加载器。
//
// 支持 YAML（.yaml/.yml）与 JSON（.json）两种格式：
//   - New 从文件创建，按扩展名自动检测格式
//   - NewFromBytes 从字节数据创建（K8s ConfigMap 等场景），需显式指定格式
//
// Unmarshal 使用 koanf 标签把配置块反序列化到结构体，
// 支持 "10s" 这类 duration 字符串。基础读取操作直接使用
// Client() 返回的 koanf 实例。
//
// Watch 基于 fsnotify 监视配置文件变更并自动 Reload，内置防抖，
// 兼容编辑器的原子写入（写临时文件后 rename）。从字节数据创建的
// Config 不支持监视，Watch 返回 ErrWatchUnsupported。
//
// xconf 不做配置治理：必选字段校验、默认值注入由上层按需实现
// （如 xseckill.LoadConfig）。
package xconf
