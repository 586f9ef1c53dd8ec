package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrStorageUnavailable 存储层不可用（数据库/缓存故障）
// 由 Service 层包装底层错误后返回，重试策略交由调用方决定
var ErrStorageUnavailable = errors.New("存储服务暂不可用")
