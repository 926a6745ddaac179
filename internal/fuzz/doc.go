
// Package fuzztests houses Go fuzz harnesses for the stub pipeline: the Kotlin
// front end, the stub builder and the tree codec. They guard against panics
// and lossy round trips on arbitrary inputs.
//
// Назначение: прогонять байты через kotlin.Parse, BuildTree, EncodeTree и
// DecodeTree.
//
// Не делает: кеширование, запись снапшотов, выполнение CLI.
//
// Зависимости: internal/source, internal/syntax/kotlin, internal/elements,
// internal/index, internal/stubio.

package fuzztests
