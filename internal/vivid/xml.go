package vivid

import (
	"encoding/xml"
	"strings"

	"vividsync/internal/domains/order"
)

// xmlNode 通用 XML 节点（标签驱动的递归解码）
type xmlNode struct {
	XMLName xml.Name
	Nodes   []xmlNode `xml:",any"`
	Text    string    `xml:",chardata"`
}

// isLeaf 无子元素即叶子
func (n *xmlNode) isLeaf() bool {
	return len(n.Nodes) == 0
}

// collectLeaves 把节点下所有叶子收进字段表：标签 → 去空白文本。
// 叶子文本缺失时取空字符串，绝不出现 null 值。
func (n *xmlNode) collectLeaves(into order.FieldMap) {
	for i := range n.Nodes {
		child := &n.Nodes[i]
		if child.isLeaf() {
			into[child.XMLName.Local] = strings.TrimSpace(child.Text)
			continue
		}
		child.collectLeaves(into)
	}
}

// parseRecordList 解析列表响应：根节点下每个 container 元素解析为一张字段表，
// 保持文档顺序
func parseRecordList(data []byte, container string) ([]order.FieldMap, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}

	var records []order.FieldMap
	for i := range root.Nodes {
		node := &root.Nodes[i]
		if node.XMLName.Local != container {
			continue
		}
		rec := make(order.FieldMap)
		node.collectLeaves(rec)
		records = append(records, rec)
	}
	return records, nil
}

// parseRecord 解析详情响应：根节点本身就是记录容器
func parseRecord(data []byte) (order.FieldMap, error) {
	var root xmlNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	rec := make(order.FieldMap)
	root.collectLeaves(rec)
	return rec, nil
}
